package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// MediaClass separates the main event gallery from selfie intake.
type MediaClass string

const (
	ClassImages  MediaClass = "images"
	ClassSelfies MediaClass = "selfies"
)

// Validate checks that the class is one of the known media classes.
func (c MediaClass) Validate() error {
	switch c {
	case ClassImages, ClassSelfies:
		return nil
	default:
		return fmt.Errorf("unknown media class %q", string(c))
	}
}

// EventID identifies an event. Events have no record of their own; an event
// exists as long as at least one key shares its prefix.
type EventID string

// NewEventID returns a fresh time-ordered event identifier.
func NewEventID() (EventID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}
	return EventID(id.String()), nil
}

// Validate checks that the event id can be used as a single key segment.
func (e EventID) Validate() error {
	if strings.TrimSpace(string(e)) == "" {
		return fmt.Errorf("event-id cannot be empty")
	}
	if strings.Contains(string(e), "/") {
		return fmt.Errorf("event-id %q must not contain '/'", string(e))
	}
	return nil
}

// String returns the event id as a string.
func (e EventID) String() string {
	return string(e)
}

const defaultRole = "user"

// Identity is the already-authenticated user on whose behalf an operation
// runs. It is passed into every operation explicitly.
type Identity struct {
	Email string
	Name  string
	Role  string
}

// Owner returns the namespace owner: the email when present, the display
// name otherwise.
func (i Identity) Owner() (string, error) {
	owner := i.Email
	if owner == "" {
		owner = i.Name
	}
	if owner == "" {
		return "", ErrAuthenticationRequired
	}
	if strings.TrimSpace(owner) == "" || strings.Contains(owner, "/") {
		return "", ErrInvalidIdentity
	}
	return owner, nil
}

// OwnerFolder is the display-safe form of the owner: every non-alphanumeric
// character is replaced with '_'.
func (i Identity) OwnerFolder() string {
	owner := i.Email
	if owner == "" {
		owner = i.Name
	}
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, owner)
}

// RoleOrDefault returns the role, falling back to "user".
func (i Identity) RoleOrDefault() string {
	if i.Role == "" {
		return defaultRole
	}
	return i.Role
}

// MediaObject is one stored object inside an event namespace.
type MediaObject struct {
	Key         string
	Owner       string
	EventID     EventID
	Class       MediaClass
	ContentType string
	Size        int64
	UploadedAt  time.Time
}
