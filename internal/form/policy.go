package form

import (
	"strings"
	"unicode/utf8"
)

// PasswordSpecials is the set of characters that satisfy the special-character rule
const PasswordSpecials = "@$!%*#?&"

const minPasswordLength = 8

// Password policy messages, reported in this order
const (
	MsgPasswordLength  = "Password must be at least 8 characters"
	MsgPasswordUpper   = "Include at least one uppercase letter"
	MsgPasswordLower   = "Include at least one lowercase letter"
	MsgPasswordDigit   = "Include at least one number"
	MsgPasswordSpecial = "Include at least one special character (@$!%*#?&)"
)

// CheckPassword returns one message per rule the password breaks; an empty
// result means the password is acceptable
func CheckPassword(pw string) []string {
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}

	var violations []string
	if utf8.RuneCountInString(pw) < minPasswordLength {
		violations = append(violations, MsgPasswordLength)
	}
	if !upper {
		violations = append(violations, MsgPasswordUpper)
	}
	if !lower {
		violations = append(violations, MsgPasswordLower)
	}
	if !digit {
		violations = append(violations, MsgPasswordDigit)
	}
	if !strings.ContainsAny(pw, PasswordSpecials) {
		violations = append(violations, MsgPasswordSpecial)
	}
	return violations
}
