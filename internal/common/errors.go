// Package common defines sentinel errors shared by the bot layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorPersistence = errors.New("persistence failure")

	// Profile store errors.
	ErrorAlreadyExists      = errors.New("already exists")
	ErrorValidation         = errors.New("validation error")
	ErrorConflictingRequest = errors.New("conflicting request")

	// Callback codec errors.
	ErrorUnknownCode = errors.New("unknown callback code")
)
