package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job does not exist
	ErrNotFound = errors.New("job not found")

	// ErrNotOwner is returned when a job belongs to another user.
	// The API reports it like ErrNotFound so task ids cannot be probed.
	ErrNotOwner = errors.New("job belongs to another user")

	// ErrJobNotCompleted is returned when an operation needs a completed job
	ErrJobNotCompleted = errors.New("job is not completed")

	// ErrJobFinished is returned when a terminal job is modified again
	ErrJobFinished = errors.New("job already finished")

	// ErrNoJobsAvailable indicates no pending jobs are waiting
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrResultTooLarge is returned when an analysis result exceeds the
	// job-record size ceiling
	ErrResultTooLarge = errors.New("analysis result too large")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
