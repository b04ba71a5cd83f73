package model

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired means no identity could be resolved.
	ErrAuthenticationRequired = errors.New("user authentication required")
	// ErrInvalidIdentity means an identity is present but unusable as a key segment.
	ErrInvalidIdentity = errors.New("invalid user identity")
	// ErrNoFiles means the batch was empty after filtering.
	ErrNoFiles = errors.New("no files to upload")
	// ErrEventNotFound means no object exists under the event prefix.
	ErrEventNotFound = errors.New("event not found")
)

// ValidationError rejects a single file before any network call.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Filename, e.Reason)
}

// TransferError wraps a store or network failure during put, get or delete.
type TransferError struct {
	Op  string
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ListingError wraps a store enumeration failure.
type ListingError struct {
	Prefix string
	Err    error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Prefix, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
