package models

import "errors"

// ParsedAccount is a validated signup payload. It is the only input accepted
// by the repositories when creating a subscriber.
type ParsedAccount struct {
	Name  SanitizedName
	Email SanitizedEmail
}

// ParseAccount validates both fields and reports every rejection at once.
func ParseAccount(rawName, rawEmail string) (ParsedAccount, error) {
	name, nameErr := ParseName(rawName)
	email, emailErr := ParseEmail(rawEmail)
	if err := errors.Join(nameErr, emailErr); err != nil {
		return ParsedAccount{}, err
	}
	return ParsedAccount{Name: name, Email: email}, nil
}

// Parsed reports whether both fields came from the parsers. The zero
// ParsedAccount, or one built from zero-valued fields, is not parsed.
func (a ParsedAccount) Parsed() bool {
	return !a.Name.IsZero() && !a.Email.IsZero()
}

// ErrUnparsedAccount is returned when an account that did not come from
// ParseAccount is handed to a store.
var ErrUnparsedAccount = &FieldError{Field: "account", Reason: "was not produced by ParseAccount"}
