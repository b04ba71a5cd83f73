package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/ingestion"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

// memStore is an in-memory object store shared by the ingestion and gallery
// sides of these tests.
type memStore struct {
	mu        sync.Mutex
	objects   map[string]storage.ObjectInfo
	listErr   error
	deleteErr error
	listCalls int
}

func newMemStore(keys ...string) *memStore {
	s := &memStore{objects: make(map[string]storage.ObjectInfo)}
	for _, k := range keys {
		s.objects[k] = storage.ObjectInfo{Key: k}
	}
	return s
}

func (s *memStore) Put(ctx context.Context, key string, data io.Reader, size int64, opts storage.PutOptions) error {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storage.ObjectInfo{Key: key, Size: size, ContentType: opts.ContentType}
	return nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []storage.ObjectInfo
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memStore) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	seen := make(map[string]bool)
	var out []string
	for k := range s.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		child, _, found := strings.Cut(rest, "/")
		if !found || seen[child] {
			continue
		}
		seen[child] = true
		out = append(out, prefix+child+"/")
	}
	return out, nil
}

func (s *memStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return obj, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) PublicURL(key string) string {
	return storage.PublicURL("ps-pics", "s3.amazonaws.com", key)
}

var alice = model.Identity{Email: "a@b.com"}

func TestLister_List_FiltersImages(t *testing.T) {
	store := newMemStore(
		"events/a@b.com/evt/images/1-a.jpg",
		"events/a@b.com/evt/images/2-b.JPEG",
		"events/a@b.com/evt/images/3-c.Png",
		"events/a@b.com/evt/images/4-d.gif",
		"events/a@b.com/evt/images/5-notes.txt",
		"events/a@b.com/evt/selfies/6-me.jpg",
		"events/a@b.com/other/images/7-x.jpg",
		"events/z@y.com/evt/images/8-y.jpg",
	)
	l := NewLister(store)

	view, err := l.List(context.Background(), alice, "evt")
	require.NoError(t, err)

	keys := make([]string, len(view))
	for i, img := range view {
		keys[i] = img.Key
	}
	assert.Equal(t, []string{
		"events/a@b.com/evt/images/1-a.jpg",
		"events/a@b.com/evt/images/2-b.JPEG",
		"events/a@b.com/evt/images/3-c.Png",
		"events/a@b.com/evt/selfies/6-me.jpg",
	}, keys)
	assert.Equal(t, "https://ps-pics.s3.amazonaws.com/events/a@b.com/evt/images/1-a.jpg", view[0].URL)
}

func TestLister_List_EmptyEvent(t *testing.T) {
	l := NewLister(newMemStore())

	view, err := l.List(context.Background(), alice, "evt")
	require.NoError(t, err)
	assert.NotNil(t, view)
	assert.Empty(t, view)
}

func TestLister_List_RequiresIdentity(t *testing.T) {
	store := newMemStore()
	l := NewLister(store)

	_, err := l.List(context.Background(), model.Identity{}, "evt")
	assert.ErrorIs(t, err, model.ErrAuthenticationRequired)
	assert.Zero(t, store.listCalls, "listing must not be attempted without identity")
}

func TestLister_List_StoreError(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("AccessDenied: bucket policy")
	l := NewLister(store)

	_, err := l.List(context.Background(), alice, "evt")

	var lerr *model.ListingError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "events/a@b.com/evt/", lerr.Prefix)
	assert.Contains(t, err.Error(), "AccessDenied: bucket policy")
}

func TestLister_Selfies(t *testing.T) {
	store := newMemStore(
		"events/a@b.com/evt/images/1-a.jpg",
		"events/a@b.com/evt/selfies/2-me.png",
	)
	l := NewLister(store)

	view, err := l.Selfies(context.Background(), alice, "evt")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "events/a@b.com/evt/selfies/2-me.png", view[0].Key)
}

func TestLister_Events(t *testing.T) {
	store := newMemStore(
		"events/a@b.com/evt2/images/1-a.jpg",
		"events/a@b.com/evt1/images/1-a.jpg",
		"events/a@b.com/evt1/selfies/2-b.jpg",
		"events/z@y.com/evt9/images/1-a.jpg",
	)
	l := NewLister(store)

	events, err := l.Events(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []model.EventID{"evt1", "evt2"}, events)

	_, err = l.Events(context.Background(), model.Identity{})
	assert.ErrorIs(t, err, model.ErrAuthenticationRequired)
}

func TestLister_EventExists(t *testing.T) {
	l := NewLister(newMemStore("events/a@b.com/evt/images/1-a.jpg"))

	ok, err := l.EventExists(context.Background(), alice, "evt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.EventExists(context.Background(), alice, "ev")
	require.NoError(t, err)
	assert.False(t, ok, "prefix match must stop at the event segment")
}

func TestUploadThenList_ReturnsExactlyN(t *testing.T) {
	store := newMemStore("events/a@b.com/evt/images/0-readme.txt")
	svc := ingestion.NewService(store, storage.NewResolver(nil))
	l := NewLister(store)

	const n = 5
	files := make([]ingestion.LocalFile, n)
	for i := range files {
		files[i] = ingestion.LocalFile{
			Name:        fmt.Sprintf("photo%d.jpg", i),
			ContentType: "image/jpeg",
			Size:        3,
			Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("jpg")), nil },
		}
	}
	res, err := svc.Upload(context.Background(), alice, ingestion.UploadRequest{EventID: "evt", Files: files})
	require.NoError(t, err)
	require.Len(t, res.URLs, n)

	first, err := l.List(context.Background(), alice, "evt")
	require.NoError(t, err)
	assert.Len(t, first, n)

	second, err := l.List(context.Background(), alice, "evt")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	uploaded := make(map[string]bool)
	for _, u := range res.URLs {
		uploaded[u] = true
	}
	for _, img := range first {
		assert.True(t, uploaded[img.URL], "listed url %s was not returned by upload", img.URL)
	}
}

func TestView_Remove(t *testing.T) {
	view := View{{Key: "a"}, {Key: "b"}, {Key: "c"}}

	next, ok := view.Remove("b")
	assert.True(t, ok)
	assert.Equal(t, View{{Key: "a"}, {Key: "c"}}, next)
	assert.Len(t, view, 3, "original view must not be modified")

	same, ok := view.Remove("zzz")
	assert.False(t, ok)
	assert.Equal(t, view, same)
}

func TestView_URLs(t *testing.T) {
	view := View{{URL: "u1", Key: "a"}, {URL: "u2", Key: "b"}}
	assert.Equal(t, []string{"u1", "u2"}, view.URLs())
}
