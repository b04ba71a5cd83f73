// Package gallery lists, views and deletes the images of an event.
package gallery

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

var imageKeyRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// Image is one gallery entry.
type Image struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// View is the caller-owned list of images, rebuilt on every List.
type View []Image

// Remove returns the view without the entry whose key matches. The second
// result reports whether such an entry existed.
func (v View) Remove(key string) (View, bool) {
	out := make(View, 0, len(v))
	found := false
	for _, img := range v {
		if img.Key == key {
			found = true
			continue
		}
		out = append(out, img)
	}
	if !found {
		return v, false
	}
	return out, true
}

// URLs returns the entry URLs in view order.
func (v View) URLs() []string {
	urls := make([]string, len(v))
	for i, img := range v {
		urls[i] = img.URL
	}
	return urls
}

// ObjectLister enumerates keys in object storage.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
}

type Lister struct {
	store ObjectLister
}

func NewLister(store ObjectLister) *Lister {
	return &Lister{store: store}
}

// IsImageKey reports whether a key carries a gallery image extension.
func IsImageKey(key string) bool {
	return imageKeyRe.MatchString(key)
}

// List enumerates every image of one event.
func (l *Lister) List(ctx context.Context, identity model.Identity, eventID model.EventID) (View, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}
	if err := eventID.Validate(); err != nil {
		return nil, err
	}
	return l.list(ctx, storage.EventPrefix(owner, eventID))
}

// Selfies enumerates the selfie intake of one event.
func (l *Lister) Selfies(ctx context.Context, identity model.Identity, eventID model.EventID) (View, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}
	if err := eventID.Validate(); err != nil {
		return nil, err
	}
	return l.list(ctx, storage.ClassPrefix(owner, eventID, model.ClassSelfies))
}

func (l *Lister) list(ctx context.Context, prefix string) (View, error) {
	objects, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, &model.ListingError{Prefix: prefix, Err: err}
	}

	view := make(View, 0, len(objects))
	for _, obj := range objects {
		if !IsImageKey(obj.Key) {
			continue
		}
		view = append(view, Image{URL: l.store.PublicURL(obj.Key), Key: obj.Key})
	}

	slog.DebugContext(ctx, "gallery listed", "prefix", prefix, "objects", len(objects), "images", len(view))
	return view, nil
}

// Events returns the ids of every event the owner has uploaded to. An event
// exists only through the keys below its prefix.
func (l *Lister) Events(ctx context.Context, identity model.Identity) ([]model.EventID, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}
	prefix := storage.OwnerPrefix(owner)
	prefixes, err := l.store.ListPrefixes(ctx, prefix)
	if err != nil {
		return nil, &model.ListingError{Prefix: prefix, Err: err}
	}

	events := make([]model.EventID, 0, len(prefixes))
	for _, p := range prefixes {
		id := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if model.EventID(id).Validate() != nil {
			continue
		}
		events = append(events, model.EventID(id))
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events, nil
}

// EventExists reports whether at least one object lives under the event prefix.
func (l *Lister) EventExists(ctx context.Context, identity model.Identity, eventID model.EventID) (bool, error) {
	owner, err := identity.Owner()
	if err != nil {
		return false, err
	}
	if err := eventID.Validate(); err != nil {
		return false, err
	}
	prefix := storage.EventPrefix(owner, eventID)
	objects, err := l.store.List(ctx, prefix)
	if err != nil {
		return false, &model.ListingError{Prefix: prefix, Err: err}
	}
	return len(objects) > 0, nil
}
