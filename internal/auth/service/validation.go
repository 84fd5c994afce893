package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 60
	OTPDigits         = 6
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codeRe  = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeEmail trims and lowercases an address. Every lookup and every
// allow-list comparison goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) (string, error) {
	e := NormalizeEmail(email)
	if e == "" {
		return "", newError(CodeValidation, "Email is required")
	}
	if !emailRe.MatchString(e) {
		return "", newError(CodeValidation, "Invalid email format")
	}
	return e, nil
}

func validateCode(code string) (string, error) {
	c := strings.TrimSpace(code)
	if c == "" {
		return "", newError(CodeValidation, "Code is required")
	}
	if !codeRe.MatchString(c) {
		return "", newError(CodeValidation, "OTP must be 6 digits")
	}
	return c, nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return newError(CodeValidation, "Password is required")
	}
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return newError(CodeValidation, "Password must be at least 8 characters")
	}
	return nil
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", newError(CodeValidation, "Name is too long")
	}
	return n, nil
}
