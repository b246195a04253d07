package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change would move an item
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status value is not one of the known states.
	ErrInvalidStatus = errors.New("invalid work item status")

	// ErrInvalidCategory is returned when a category string cannot be parsed.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidMediaKind is returned when a media kind is not supported.
	ErrInvalidMediaKind = errors.New("invalid media kind")
)
