package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameAcceptsValidName(t *testing.T) {
	name, err := ParseName("Ursula Le Guin")
	require.NoError(t, err)
	assert.Equal(t, "Ursula Le Guin", name.String())
	assert.False(t, name.IsZero())
}

func TestParseNameAcceptsLongestAllowedName(t *testing.T) {
	_, err := ParseName(strings.Repeat("ё", 256))
	assert.NoError(t, err)
}

func TestParsersRejectInvalidInput(t *testing.T) {
	rejected := map[string]string{
		"empty":           "",
		"whitespace only": " \t\n ",
		"too long":        strings.Repeat("a", 257),
		"NUL byte":        "Al\x00ice",
		"bell":            "Bob\a",
		"escape sequence": "Eve\x1b[31m",
		"DEL":             "Mal\x7f",
		"C1 control":      "Ann\u0085",
		"invalid UTF-8":   "Al\xffice",
		"truncated UTF-8": "caf\xc3",
	}
	for _, c := range forbiddenCharacters {
		rejected["contains "+string(c)] = "bad" + string(c) + "@example.com"
	}

	for name, input := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := ParseName(input)
			assert.ErrorIs(t, err, ErrValidation)

			_, err = ParseEmail(input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestParserRejectionsNameTheField(t *testing.T) {
	cases := map[string]string{
		"Al\x00ice": "name contains control characters",
		"Al\xffice": "name is not valid UTF-8",
		"":          "name is empty",
		"Robert<b>": "name contains forbidden characters",
	}
	for input, want := range cases {
		_, err := ParseName(input)
		require.Error(t, err)
		assert.Equal(t, []string{want}, ValidationMessages(err), "input %q", input)
	}
}

func TestValidationMessagesWalksJoinedErrors(t *testing.T) {
	_, err := ParseAccount("", "not-an-email")
	wrapped := fmt.Errorf("CreateSubscriber: %w", err)

	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, []string{"name is empty", "email is not a valid address"}, ValidationMessages(wrapped))
	assert.Empty(t, ValidationMessages(errors.New("boom")))
}

func TestParsedAccount(t *testing.T) {
	account, err := ParseAccount("Ursula", "ursula@example.com")
	require.NoError(t, err)
	assert.True(t, account.Parsed())

	assert.False(t, ParsedAccount{}.Parsed())
	assert.False(t, ParsedAccount{Name: account.Name}.Parsed())
	assert.False(t, ParsedAccount{Email: account.Email}.Parsed())
	assert.ErrorIs(t, ErrUnparsedAccount, ErrValidation)
}

func TestParseEmailRoundTripsValidAddresses(t *testing.T) {
	for _, input := range []string{
		"a@b.com",
		"ursula.le.guin@example.org",
		"first+tag@sub.example.co.uk",
		strings.Repeat("x", 64) + "@" + strings.Repeat("d", 60) + ".com",
	} {
		email, err := ParseEmail(input)
		require.NoError(t, err, input)
		assert.Equal(t, input, email.String())
	}
}

func TestParseEmailRejectsBadGrammar(t *testing.T) {
	for _, input := range []string{
		"ursulaleguin",
		"ursula@",
		"@example.com",
		"ursula@@example.com",
		" a@b.com",
		"a b@example.com",
	} {
		_, err := ParseEmail(input)
		assert.ErrorIs(t, err, ErrValidation, input)
	}
}

func TestParseAccountReportsBothFields(t *testing.T) {
	_, err := ParseAccount("", "nope")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "email")

	account, err := ParseAccount("Alice", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", account.Name.String())
	assert.Equal(t, "a@b.com", account.Email.String())
}

func TestNewSubscriberStartsUnconfirmed(t *testing.T) {
	account, err := ParseAccount("Alice", "a@b.com")
	require.NoError(t, err)

	s := NewSubscriber(account)
	assert.False(t, s.Confirmed())
	assert.NotEqual(t, s.ID, s.ActivationToken)
	assert.NotZero(t, s.ActivationToken)
	assert.False(t, s.SubscribedAt.IsZero())
}
