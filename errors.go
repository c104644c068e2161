package users

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound            = "USER_NOT_FOUND"
	TextCodeEmailTaken              = "EMAIL_TAKEN"
	TextCodeInvalidCurrentPassword  = "INVALID_CURRENT_PASSWORD"
	TextCodeCannotDeleteSelf        = "CANNOT_DELETE_SELF"
	TextCodeForbidden               = "FORBIDDEN"
	TextCodeEmptyPassword           = "EMPTY_PASSWORD"
	TextCodeMismatchedHashAndPasswd = "PASSWORD_MISMATCH"
)

// ErrUserNotFound is returned when a command targets a missing user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmailTaken is returned when an email already belongs to another user.
var ErrEmailTaken = goerrors.New("email has already been taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCurrentPassword is returned when the provided current password
// does not match.
var ErrInvalidCurrentPassword = goerrors.New("the provided password does not match your current password", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidCurrentPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrCannotDeleteSelf prevents an actor from deleting its own account.
var ErrCannotDeleteSelf = goerrors.New("users cannot delete their own account", goerrors.CategoryAuthz).
	WithTextCode(TextCodeCannotDeleteSelf).
	WithCode(goerrors.CodeForbidden)

// ErrForbidden is returned when the actor role does not allow the action.
var ErrForbidden = goerrors.New("action not allowed for this role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword wraps bcrypt mismatches
var ErrMismatchedHashAndPassword = goerrors.New("password does not match hash", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedHashAndPasswd).
	WithCode(goerrors.CodeUnauthorized)

// withMetadata returns a copy of a sentinel carrying meta.
func withMetadata(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
