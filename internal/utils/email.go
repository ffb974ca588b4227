package utils

import (
	"errors"
	"net/mail"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrEmailEmpty   = errors.New("email is empty")
	ErrEmailInvalid = errors.New("email is not valid")
)

// ValidateEmail accepts a bare address with a dotted domain
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailEmpty
	}

	// net/mail follows RFC 5322 which also accepts display names and dotless domains
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !emailRegex.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}
