package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidItemKind indicates an unknown queue item kind
	ErrInvalidItemKind = errors.New("invalid queue item kind")

	// ErrInvalidItemStatus indicates an unknown queue item status
	ErrInvalidItemStatus = errors.New("invalid queue item status")

	// ErrInvalidTransition indicates a queue item status transition that
	// violates the Pending -> InProgress -> {Ready, Failed} state machine
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyUserID indicates a missing user identifier
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyVideoID indicates a missing video identifier
	ErrEmptyVideoID = errors.New("video id cannot be empty")

	// ErrEmptyPrompt indicates a generation item without a prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrEmptyPreference indicates an empty preference vector
	ErrEmptyPreference = errors.New("preference vector cannot be empty")

	// ErrPreferenceDimension indicates a preference vector whose declared
	// dimension does not match its length
	ErrPreferenceDimension = errors.New("preference vector dimension mismatch")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
