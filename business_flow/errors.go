package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User and profile errors
	ErrUserNotFound         = errors.New("user not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrUsernameTaken        = errors.New("username is already taken")
	ErrIdentityClaimsNil    = errors.New("identity claims are required")
	ErrExternalIDRequired   = errors.New("external identity subject is required")
	ErrProfileUpdateEmpty   = errors.New("at least one profile field must be provided")
	ErrInvalidUsernameChars = errors.New("username may only contain letters, digits, dots, dashes and underscores")

	// Link errors
	ErrLinkNotFound       = errors.New("link not found")
	ErrLinkAccessDenied   = errors.New("link access denied")
	ErrSocialLinkNotFound = errors.New("social link not found")

	// Analytics errors
	ErrInvalidDays = errors.New("days must be between 1 and the configured maximum")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ErrorCode extracts the BusinessError code from err, or "" when err carries none
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsProfileNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound)
}

func IsUsernameTaken(err error) bool {
	return errors.Is(err, ErrUsernameTaken)
}

func IsLinkNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}

func IsLinkAccessDenied(err error) bool {
	return errors.Is(err, ErrLinkAccessDenied)
}

func IsSocialLinkNotFound(err error) bool {
	return errors.Is(err, ErrSocialLinkNotFound)
}

func IsInvalidDays(err error) bool {
	return errors.Is(err, ErrInvalidDays)
}
