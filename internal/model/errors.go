package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrTransport is returned when the backend could not be reached or answered
	// with something that is not a usable response.
	ErrTransport = errors.New("transport error")
	// ErrOperationFailed is returned when a watched operation ends in a failed status.
	ErrOperationFailed = errors.New("operation failed")
)
