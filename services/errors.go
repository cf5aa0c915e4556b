package services

import (
	"errors"

	"github.com/cppla/questmock/models"
)

var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidDateFormat is returned for days not in YYYYMMDD or YYYY-MM-DD form.
	ErrInvalidDateFormat = errors.New("invalid date format: expected YYYYMMDD or YYYY-MM-DD")
	// ErrAlreadyAttended is returned when the user already checked in that day.
	ErrAlreadyAttended = errors.New("already attended")
	// ErrUserNotFound is returned when no user has the given uuid.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnknownEventType is returned for event types outside the closed set.
	ErrUnknownEventType = models.ErrUnknownEventType
)

// IsClientError reports whether err should be answered with a 400.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidDateFormat) || errors.Is(err, ErrUnknownEventType)
}
