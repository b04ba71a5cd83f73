package ingestion

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

type putCall struct {
	key  string
	data string
	size int64
	opts storage.PutOptions
}

type stubStorage struct {
	mu    sync.Mutex
	puts  []putCall
	err   error
	errOn string // fail only keys containing this substring
}

func (s *stubStorage) Put(ctx context.Context, key string, data io.Reader, size int64, opts storage.PutOptions) error {
	if s.err != nil && (s.errOn == "" || strings.Contains(key, s.errOn)) {
		return s.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, putCall{key: key, data: string(b), size: size, opts: opts})
	return nil
}

func (s *stubStorage) PublicURL(key string) string {
	return "https://ps-pics.s3.amazonaws.com/" + key
}

func file(name, contentType string, size int64) LocalFile {
	return LocalFile{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data:" + name)), nil
		},
	}
}

var (
	owner     = model.Identity{Email: "a@b.com"}
	fixedTime = time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)
)

func newTestService(st ObjectStorage) *Service {
	tokens := storage.NewTokenSource(func() time.Time { return time.UnixMilli(1717171717171) })
	return NewService(st, storage.NewResolver(tokens), WithClock(func() time.Time { return fixedTime }))
}

func TestService_Upload_ExcludesSelfies(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	res, err := svc.Upload(context.Background(), owner, UploadRequest{
		EventID: "evt123",
		Files: []LocalFile{
			file("photo1.png", "image/png", 2*1024*1024),
			file("selfie_bob.jpg", "image/jpeg", 1024*1024),
		},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if !res.SelfiesExcluded() || len(res.Excluded) != 1 || res.Excluded[0] != "selfie_bob.jpg" {
		t.Fatalf("expected selfie_bob.jpg to be excluded, got %v", res.Excluded)
	}
	if len(st.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(st.puts))
	}
	expectedKey := "events/a@b.com/evt123/images/1717171717171-photo1.png"
	if st.puts[0].key != expectedKey {
		t.Fatalf("expected key %s, got %s", expectedKey, st.puts[0].key)
	}
	if len(res.URLs) != 1 || res.URLs[0] != "https://ps-pics.s3.amazonaws.com/"+expectedKey {
		t.Fatalf("unexpected URLs %v", res.URLs)
	}
	if res.EventID != "evt123" {
		t.Fatalf("expected event id evt123, got %s", res.EventID)
	}
}

func TestService_Upload_SelfieGuardIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"SELFIE.png", "MySelf.jpg", "selfportrait.png", "bob_Self_2.jpeg"} {
		if !IsSelfieName(name) {
			t.Errorf("IsSelfieName(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"photo.png", "shelf.jpg", "sel-fie.png"} {
		if IsSelfieName(name) {
			t.Errorf("IsSelfieName(%q) = true, want false", name)
		}
	}
}

func TestService_Upload_Metadata(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	_, err := svc.Upload(context.Background(), owner, UploadRequest{
		EventID: "evt123",
		Files:   []LocalFile{file("photo1.png", "image/png", 10)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	call := st.puts[0]
	if call.opts.ContentType != "image/png" {
		t.Errorf("content type = %q", call.opts.ContentType)
	}
	if call.size != 10 {
		t.Errorf("size = %d, want 10", call.size)
	}
	want := map[string]string{
		"event-id":    "evt123",
		"user-email":  "a@b.com",
		"upload-date": "2025-03-12T10:30:00.000Z",
	}
	for k, v := range want {
		if call.opts.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, call.opts.Metadata[k], v)
		}
	}
	if call.data != "data:photo1.png" {
		t.Errorf("data = %q", call.data)
	}
}

func TestService_Upload_NameOnlyIdentity(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	_, err := svc.Upload(context.Background(), model.Identity{Name: "Alice"}, UploadRequest{
		EventID: "evt",
		Files:   []LocalFile{file("a.png", "image/png", 1)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasPrefix(st.puts[0].key, "events/Alice/evt/images/") {
		t.Errorf("unexpected key %s", st.puts[0].key)
	}
	if st.puts[0].opts.Metadata["user-email"] != "" {
		t.Errorf("user-email should be empty, got %q", st.puts[0].opts.Metadata["user-email"])
	}
}

func TestService_Upload_ValidationRejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name     string
		files    []LocalFile
		wantFile string
		wantMsg  string
	}{
		{
			name: "wrong type",
			files: []LocalFile{
				file("ok.png", "image/png", 1),
				file("notes.pdf", "application/pdf", 1),
			},
			wantFile: "notes.pdf",
			wantMsg:  "notes.pdf is not a valid image file",
		},
		{
			name: "oversize",
			files: []LocalFile{
				file("big.jpg", "image/jpeg", 10*1024*1024+1),
				file("ok.png", "image/png", 1),
			},
			wantFile: "big.jpg",
			wantMsg:  "big.jpg exceeds the 10MB size limit",
		},
		{
			name: "first failure wins",
			files: []LocalFile{
				file("a.txt", "text/plain", 1),
				file("b.jpg", "image/jpeg", 11*1024*1024),
			},
			wantFile: "a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &stubStorage{}
			svc := newTestService(st)

			_, err := svc.Upload(context.Background(), owner, UploadRequest{EventID: "evt", Files: tt.files})

			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Filename != tt.wantFile {
				t.Errorf("filename = %s, want %s", verr.Filename, tt.wantFile)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
			if len(st.puts) != 0 {
				t.Errorf("expected no network writes, got %d", len(st.puts))
			}
		})
	}
}

func TestService_Upload_ExactlyMaxSizeAccepted(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	_, err := svc.Upload(context.Background(), owner, UploadRequest{
		EventID: "evt",
		Files:   []LocalFile{file("edge.png", "image/png", 10*1024*1024)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestService_Upload_RequiresIdentity(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	_, err := svc.Upload(context.Background(), model.Identity{}, UploadRequest{
		EventID: "evt",
		Files:   []LocalFile{file("a.png", "image/png", 1)},
	})
	if !errors.Is(err, model.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if len(st.puts) != 0 {
		t.Fatalf("expected no writes, got %d", len(st.puts))
	}
}

func TestService_Upload_OnlySelfies(t *testing.T) {
	svc := newTestService(&stubStorage{})

	res, err := svc.Upload(context.Background(), owner, UploadRequest{
		EventID: "evt",
		Files:   []LocalFile{file("selfie.png", "image/png", 1)},
	})
	if !errors.Is(err, model.ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if !res.SelfiesExcluded() {
		t.Fatal("expected exclusion to be reported")
	}
}

func TestService_Upload_AssignsEventID(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	res, err := svc.Upload(context.Background(), owner, UploadRequest{
		Files: []LocalFile{file("a.png", "image/png", 1)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.EventID == "" {
		t.Fatal("expected an assigned event id")
	}
	if !strings.HasPrefix(st.puts[0].key, storage.EventPrefix("a@b.com", res.EventID)) {
		t.Fatalf("key %s not under assigned event %s", st.puts[0].key, res.EventID)
	}
}

func TestService_Upload_PreservesOrder(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	names := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	files := make([]LocalFile, len(names))
	for i, n := range names {
		files[i] = file(n, "image/png", 1)
	}

	res, err := svc.Upload(context.Background(), owner, UploadRequest{EventID: "evt", Files: files})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(res.URLs) != len(names) {
		t.Fatalf("expected %d urls, got %d", len(names), len(res.URLs))
	}
	seen := make(map[string]bool)
	for i, u := range res.URLs {
		if !strings.HasSuffix(u, "-"+names[i]) {
			t.Errorf("url %d = %s, want suffix %s", i, u, names[i])
		}
		if seen[u] {
			t.Errorf("duplicate url %s", u)
		}
		seen[u] = true
	}
}

func TestService_Upload_TransferErrorFailsBatch(t *testing.T) {
	st := &stubStorage{err: errors.New("store failed"), errOn: "b.png"}
	svc := newTestService(st)

	res, err := svc.Upload(context.Background(), owner, UploadRequest{
		EventID: "evt",
		Files:   []LocalFile{file("a.png", "image/png", 1), file("b.png", "image/png", 1)},
	})
	var terr *model.TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if !strings.Contains(err.Error(), "store failed") {
		t.Fatalf("expected store error, got %v", err)
	}
	if res.URLs != nil {
		t.Fatalf("expected no partial result, got %v", res.URLs)
	}
}

func TestService_Upload_OpenErrorFailsBatch(t *testing.T) {
	svc := newTestService(&stubStorage{})

	broken := file("a.png", "image/png", 1)
	broken.Open = func() (io.ReadCloser, error) { return nil, errors.New("permission denied") }

	_, err := svc.Upload(context.Background(), owner, UploadRequest{EventID: "evt", Files: []LocalFile{broken}})
	var terr *model.TransferError
	if !errors.As(err, &terr) || terr.Op != "open" {
		t.Fatalf("expected open TransferError, got %v", err)
	}
}

func TestService_UploadSelfie(t *testing.T) {
	st := &stubStorage{}
	svc := newTestService(st)

	obj, url, err := svc.UploadSelfie(context.Background(), owner, "evt123", file("selfie_bob.jpg", "image/jpeg", 100))
	if err != nil {
		t.Fatalf("UploadSelfie() error = %v", err)
	}
	expectedKey := "events/a@b.com/evt123/selfies/1717171717171-selfie_bob.jpg"
	if obj.Key != expectedKey {
		t.Fatalf("expected key %s, got %s", expectedKey, obj.Key)
	}
	if obj.Class != model.ClassSelfies {
		t.Errorf("class = %s", obj.Class)
	}
	if url != "https://ps-pics.s3.amazonaws.com/"+expectedKey {
		t.Errorf("url = %s", url)
	}
}

func TestService_UploadSelfie_Errors(t *testing.T) {
	svc := newTestService(&stubStorage{})
	ctx := context.Background()

	if _, _, err := svc.UploadSelfie(ctx, owner, "", file("s.jpg", "image/jpeg", 1)); err == nil {
		t.Error("expected error for missing event id")
	}
	if _, _, err := svc.UploadSelfie(ctx, model.Identity{}, "evt", file("s.jpg", "image/jpeg", 1)); !errors.Is(err, model.ErrAuthenticationRequired) {
		t.Errorf("expected ErrAuthenticationRequired, got %v", err)
	}
	var verr *model.ValidationError
	if _, _, err := svc.UploadSelfie(ctx, owner, "evt", file("s.gif", "video/mp4", 1)); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
