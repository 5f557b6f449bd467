// Package validation checks user-supplied identity fields before they reach a service.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password accepted for a login user.
const MinPasswordLength = 8

const maxEmailLength = 254

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoLetter = errors.New("password needs a letter")
	ErrPasswordNoDigit  = errors.New("password needs a number")
	ErrPasswordNoSymbol = errors.New("password needs a symbol")
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern  = regexp.MustCompile(`^\p{L}[\p{L} '\-]*$`)
)

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// CheckPassword reports the first rule a password breaks, or nil.
func CheckPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var letter, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !letter:
		return ErrPasswordNoLetter
	case !digit:
		return ErrPasswordNoDigit
	case !symbol:
		return ErrPasswordNoSymbol
	}
	return nil
}

// IsValidFullname accepts letters from any script plus spaces, hyphens and apostrophes,
// starting with a letter.
func IsValidFullname(fullname string) bool {
	return namePattern.MatchString(fullname)
}
