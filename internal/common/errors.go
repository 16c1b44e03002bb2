// Package common defines shared constants and sentinel errors used across
// the file reference, translation and transport layers. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// File reference errors (bad client input, never a crash).
	ErrInvalidReference = errors.New("invalid file reference")

	// Request validation errors.
	ErrValidation = errors.New("validation error")

	// Startup errors: missing secret, missing default-locale data, bad backend settings.
	ErrConfiguration = errors.New("configuration error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
