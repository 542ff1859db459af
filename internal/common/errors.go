// Package common defines shared sentinel errors used across the service
// layers of RiderManager. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Messaging errors.
	ErrorMalformedMessage = errors.New("malformed message")

	// Infrastructure errors (object storage, broker).
	ErrorUnavailable = errors.New("storage unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
