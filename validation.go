package users

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

const (
	MinPasswordLength = 10
	MaxPasswordLength = 100
)

var (
	errPasswordMixedCase = errors.New("must contain upper and lower case letters")
	errPasswordNumber    = errors.New("must contain at least one number")
	errPasswordSymbol    = errors.New("must contain at least one symbol")
)

// passwordRules are applied to every new password.
func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, MaxPasswordLength),
		validation.By(StrongPassword),
	}
}

// StrongPassword requires mixed case letters, a number and a symbol.
func StrongPassword(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var upper, lower, number, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case !upper || !lower:
		return errPasswordMixedCase
	case !number:
		return errPasswordNumber
	case !symbol:
		return errPasswordSymbol
	}
	return nil
}

// ValidateStringEquals checks a confirmation field
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// validRole accepts any of the known roles.
func validRole(value any) error {
	var role UserRole
	switch v := value.(type) {
	case UserRole:
		role = v
	case *UserRole:
		if v == nil {
			return nil
		}
		role = *v
	case string:
		role = UserRole(v)
	}
	if role == "" {
		return nil
	}
	if !role.IsValid() {
		return errors.New("must be one of admin, manager or user")
	}
	return nil
}

// requiredUUID rejects uuid.Nil, which validation.Required accepts since
// uuid.UUID is a fixed size array.
func requiredUUID(value any) error {
	switch v := value.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return errors.New("cannot be blank")
		}
	case *uuid.UUID:
		if v == nil || *v == uuid.Nil {
			return errors.New("cannot be blank")
		}
	}
	return nil
}
