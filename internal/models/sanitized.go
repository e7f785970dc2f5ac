package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ErrValidation tags every rejection produced by the parsers in this package.
var ErrValidation = errors.New("invalid input")

const maxFieldLength = 256

const forbiddenCharacters = `/()"<>\{}`

var validate = validator.New()

// FieldError is a single parser rejection. It matches ErrValidation with
// errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return ErrValidation.Error() + ": " + e.Message()
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// Message is the rejection without the ErrValidation prefix.
func (e *FieldError) Message() string {
	return e.Field + " " + e.Reason
}

// ValidationMessages collects the Message of every FieldError in err's tree,
// including errors combined with errors.Join.
func ValidationMessages(err error) []string {
	var messages []string
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case nil:
		case *FieldError:
			messages = append(messages, e.Message())
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)
	return messages
}

// SanitizedName is a display name that is non-blank, at most 256 characters
// long and free of the characters in forbiddenCharacters. The zero value is
// not a valid name; use ParseName.
type SanitizedName struct {
	value string
}

// SanitizedEmail is an email address that passed the same checks as
// SanitizedName plus address grammar validation. Use ParseEmail.
type SanitizedEmail struct {
	value string
}

func ParseName(raw string) (SanitizedName, error) {
	if err := checkField("name", raw); err != nil {
		return SanitizedName{}, err
	}
	return SanitizedName{value: raw}, nil
}

func ParseEmail(raw string) (SanitizedEmail, error) {
	if err := checkField("email", raw); err != nil {
		return SanitizedEmail{}, err
	}
	if err := validate.Var(raw, "email"); err != nil {
		return SanitizedEmail{}, &FieldError{Field: "email", Reason: "is not a valid address"}
	}
	return SanitizedEmail{value: raw}, nil
}

func checkField(field, raw string) error {
	switch {
	case !utf8.ValidString(raw):
		return &FieldError{Field: field, Reason: "is not valid UTF-8"}
	case strings.TrimSpace(raw) == "":
		return &FieldError{Field: field, Reason: "is empty"}
	case utf8.RuneCountInString(raw) > maxFieldLength:
		return &FieldError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", maxFieldLength)}
	case strings.IndexFunc(raw, unicode.IsControl) >= 0:
		return &FieldError{Field: field, Reason: "contains control characters"}
	case strings.ContainsAny(raw, forbiddenCharacters):
		return &FieldError{Field: field, Reason: "contains forbidden characters"}
	}
	return nil
}

func (n SanitizedName) String() string { return n.value }

func (n SanitizedName) IsZero() bool { return n.value == "" }

func (e SanitizedEmail) String() string { return e.value }

func (e SanitizedEmail) IsZero() bool { return e.value == "" }
