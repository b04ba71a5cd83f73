package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
)

const rootPrefix = "events"

var (
	ErrEmptyFilename = errors.New("filename cannot be empty")
	ErrMalformedKey  = errors.New("key does not match events/{owner}/{event}/{class}/{token}-{filename}")
)

type ObjectKey struct {
	Owner    string
	EventID  model.EventID
	Class    model.MediaClass
	Token    string // upload token, milliseconds since epoch
	Filename string // original filename, base name only
}

func (k ObjectKey) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s", rootPrefix, k.Owner, k.EventID, k.Class, k.Token, k.Filename)
}

// UploadedAt decodes the upload instant carried by the token.
func (k ObjectKey) UploadedAt() (time.Time, bool) {
	ms, err := strconv.ParseInt(k.Token, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// OwnerPrefix is the namespace holding every event of one owner.
func OwnerPrefix(owner string) string {
	return fmt.Sprintf("%s/%s/", rootPrefix, owner)
}

// EventPrefix is the namespace holding every object of one event.
func EventPrefix(owner string, eventID model.EventID) string {
	return fmt.Sprintf("%s/%s/%s/", rootPrefix, owner, eventID)
}

// ClassPrefix narrows EventPrefix to one media class.
func ClassPrefix(owner string, eventID model.EventID, class model.MediaClass) string {
	return fmt.Sprintf("%s/%s/%s/%s/", rootPrefix, owner, eventID, class)
}

// ParseKey is the inverse of ObjectKey.Key.
func ParseKey(key string) (ObjectKey, error) {
	parts := strings.SplitN(key, "/", 5)
	if len(parts) != 5 || parts[0] != rootPrefix {
		return ObjectKey{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	token, filename, ok := strings.Cut(parts[4], "-")
	if !ok || token == "" || filename == "" || strings.Contains(filename, "/") {
		return ObjectKey{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	k := ObjectKey{
		Owner:    parts[1],
		EventID:  model.EventID(parts[2]),
		Class:    model.MediaClass(parts[3]),
		Token:    token,
		Filename: filename,
	}
	if k.Owner == "" || k.EventID.Validate() != nil || k.Class.Validate() != nil {
		return ObjectKey{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return k, nil
}

// PublicURL derives the canonical public address of a key:
// https://{bucket}.{host}/{key}.
func PublicURL(bucket, host, key string) string {
	u := url.URL{
		Scheme: "https",
		Host:   bucket + "." + host,
		Path:   "/" + key,
	}
	return u.String()
}

// DisplayPath is the owner-scoped path shown next to download links.
func DisplayPath(role, ownerFolder, filename string) string {
	return fmt.Sprintf("%s/%s/%s", role, ownerFolder, filename)
}

// TokenSource hands out upload tokens: millisecond timestamps that never
// repeat within one source, even when the clock has not advanced.
type TokenSource struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewTokenSource(now func() time.Time) *TokenSource {
	if now == nil {
		now = time.Now
	}
	return &TokenSource{now: now}
}

func (s *TokenSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return strconv.FormatInt(ms, 10)
}

// Resolver derives storage keys for new uploads.
type Resolver struct {
	tokens *TokenSource
}

func NewResolver(tokens *TokenSource) *Resolver {
	if tokens == nil {
		tokens = NewTokenSource(nil)
	}
	return &Resolver{tokens: tokens}
}

func (r *Resolver) Resolve(owner string, eventID model.EventID, class model.MediaClass, filename string) (ObjectKey, error) {
	if owner == "" {
		return ObjectKey{}, model.ErrInvalidIdentity
	}
	if err := eventID.Validate(); err != nil {
		return ObjectKey{}, err
	}
	if err := class.Validate(); err != nil {
		return ObjectKey{}, err
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return ObjectKey{}, ErrEmptyFilename
	}

	return ObjectKey{
		Owner:    owner,
		EventID:  eventID,
		Class:    class,
		Token:    r.tokens.Next(),
		Filename: name,
	}, nil
}
