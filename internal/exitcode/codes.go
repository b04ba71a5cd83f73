package exitcode

import (
	"errors"
	"net"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/bulk"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/config"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

// Exit codes for the eventalbum CLI.
// Scripts can use these to tell a bad invocation from a flaky store.
const (
	// Success - command completed successfully
	Success = 0

	// ConfigError - missing or invalid configuration or flags
	// Don't retry: fix the config first
	ConfigError = 1

	// NetworkError - transient network failure (timeout, DNS, refused)
	// Retry with backoff
	NetworkError = 2

	// AuthError - no session identity to scope the request to
	// Set USER_EMAIL or USER_NAME
	AuthError = 3

	// StorageError - the object store rejected a list, put or delete
	// Retry with backoff
	StorageError = 4

	// ValidationError - a file or key was rejected before any transfer
	// Don't retry: fix the input
	ValidationError = 5

	// PartialFailure - a batch finished but some items failed
	// Retry the failed items only
	PartialFailure = 6
)

// FromError maps a command error onto an exit code.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var (
		missing    *config.ErrMissingRequiredEnvVar
		invalidEnv *config.ErrInvalidEnvVar
		validation *model.ValidationError
		transfer   *model.TransferError
		listing    *model.ListingError
		netErr     net.Error
	)
	switch {
	case errors.Is(err, bulk.ErrIncomplete):
		return PartialFailure
	case errors.As(err, &missing), errors.As(err, &invalidEnv):
		return ConfigError
	case errors.Is(err, model.ErrAuthenticationRequired), errors.Is(err, model.ErrInvalidIdentity):
		return AuthError
	case errors.As(err, &validation),
		errors.Is(err, model.ErrNoFiles),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, storage.ErrEmptyFilename),
		errors.Is(err, storage.ErrMalformedKey):
		return ValidationError
	case errors.As(err, &netErr):
		return NetworkError
	case errors.As(err, &transfer), errors.As(err, &listing), errors.Is(err, storage.ErrObjectNotFound):
		return StorageError
	default:
		return ConfigError
	}
}
