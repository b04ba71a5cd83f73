package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

const (
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultConcurrency = 4
)

// LocalFile is a candidate file on the uploading device.
type LocalFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadRequest contains input parameters for a batch upload.
type UploadRequest struct {
	EventID model.EventID // empty assigns a new event
	Files   []LocalFile
}

// UploadResult reports a fully successful batch.
type UploadResult struct {
	EventID  model.EventID
	URLs     []string // same order as the accepted files
	Objects  []model.MediaObject
	Excluded []string // names routed away from the gallery by the selfie guard
}

// SelfiesExcluded reports whether the selfie guard filtered any file.
func (r UploadResult) SelfiesExcluded() bool {
	return len(r.Excluded) > 0
}

// ObjectStorage writes data streams to object storage.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, opts storage.PutOptions) error
	PublicURL(key string) string
}

// Option configures a Service.
type Option func(*Service)

func WithMaxFileSize(n int64) Option {
	return func(s *Service) { s.maxFileSize = n }
}

func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates ingestion steps: validate, resolve keys, store.
type Service struct {
	objectStorage ObjectStorage
	resolver      *storage.Resolver
	maxFileSize   int64
	concurrency   int
	now           func() time.Time
}

func NewService(objectStorage ObjectStorage, resolver *storage.Resolver, opts ...Option) *Service {
	s := &Service{
		objectStorage: objectStorage,
		resolver:      resolver,
		maxFileSize:   DefaultMaxFileSize,
		concurrency:   DefaultConcurrency,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = storage.NewResolver(nil)
	}
	return s
}

// IsSelfieName reports whether a filename looks like a selfie. Such files
// belong to the selfie intake, not the event gallery.
func IsSelfieName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "selfie") || strings.Contains(lower, "self")
}

// Upload stores a batch of images into the event gallery. Every accepted file
// is validated before the first write; any failure fails the whole batch.
func (s *Service) Upload(ctx context.Context, identity model.Identity, req UploadRequest) (UploadResult, error) {
	owner, err := identity.Owner()
	if err != nil {
		return UploadResult{}, err
	}

	var accepted []LocalFile
	var excluded []string
	for _, f := range req.Files {
		if IsSelfieName(f.Name) {
			excluded = append(excluded, f.Name)
			continue
		}
		accepted = append(accepted, f)
	}
	if len(excluded) > 0 {
		slog.WarnContext(ctx, "selfie images excluded from gallery upload", "files", excluded)
	}
	if len(accepted) == 0 {
		return UploadResult{Excluded: excluded}, model.ErrNoFiles
	}

	for _, f := range accepted {
		if err := s.validate(f); err != nil {
			return UploadResult{Excluded: excluded}, err
		}
	}

	eventID := req.EventID
	if eventID == "" {
		if eventID, err = model.NewEventID(); err != nil {
			return UploadResult{}, err
		}
		slog.InfoContext(ctx, "assigned new event", "event_id", eventID)
	}
	if err := eventID.Validate(); err != nil {
		return UploadResult{}, err
	}

	keys := make([]storage.ObjectKey, len(accepted))
	for i, f := range accepted {
		if keys[i], err = s.resolver.Resolve(owner, eventID, model.ClassImages, f.Name); err != nil {
			return UploadResult{}, &model.ValidationError{Filename: f.Name, Reason: err.Error()}
		}
	}

	slog.DebugContext(ctx, "upload started", "event_id", eventID, "files", len(accepted))

	objects := make([]model.MediaObject, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, f := range accepted {
		g.Go(func() error {
			obj, err := s.put(gctx, identity, owner, eventID, keys[i], f)
			if err != nil {
				return err
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return UploadResult{}, err
	}

	urls := make([]string, len(objects))
	for i, obj := range objects {
		urls[i] = s.objectStorage.PublicURL(obj.Key)
	}

	slog.InfoContext(ctx, "upload complete", "event_id", eventID, "files", len(objects))
	return UploadResult{
		EventID:  eventID,
		URLs:     urls,
		Objects:  objects,
		Excluded: excluded,
	}, nil
}

// UploadSelfie stores one selfie for an existing event.
func (s *Service) UploadSelfie(ctx context.Context, identity model.Identity, eventID model.EventID, f LocalFile) (model.MediaObject, string, error) {
	owner, err := identity.Owner()
	if err != nil {
		return model.MediaObject{}, "", err
	}
	if err := eventID.Validate(); err != nil {
		return model.MediaObject{}, "", err
	}
	if err := s.validate(f); err != nil {
		return model.MediaObject{}, "", err
	}

	key, err := s.resolver.Resolve(owner, eventID, model.ClassSelfies, f.Name)
	if err != nil {
		return model.MediaObject{}, "", &model.ValidationError{Filename: f.Name, Reason: err.Error()}
	}
	obj, err := s.put(ctx, identity, owner, eventID, key, f)
	if err != nil {
		return model.MediaObject{}, "", err
	}

	slog.InfoContext(ctx, "selfie stored", "event_id", eventID, "key", obj.Key)
	return obj, s.objectStorage.PublicURL(obj.Key), nil
}

func (s *Service) validate(f LocalFile) error {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return &model.ValidationError{Filename: f.Name, Reason: "is not a valid image file"}
	}
	if f.Size > s.maxFileSize {
		return &model.ValidationError{
			Filename: f.Name,
			Reason:   fmt.Sprintf("exceeds the %dMB size limit", s.maxFileSize/(1024*1024)),
		}
	}
	if f.Open == nil {
		return &model.ValidationError{Filename: f.Name, Reason: "cannot be read"}
	}
	return nil
}

func (s *Service) put(ctx context.Context, identity model.Identity, owner string, eventID model.EventID, key storage.ObjectKey, f LocalFile) (model.MediaObject, error) {
	body, err := f.Open()
	if err != nil {
		return model.MediaObject{}, &model.TransferError{Op: "open", Key: f.Name, Err: err}
	}
	defer body.Close()

	uploadedAt := s.now().UTC()
	metadata := map[string]string{
		"event-id":    eventID.String(),
		"user-email":  identity.Email,
		"upload-date": uploadedAt.Format("2006-01-02T15:04:05.000Z"),
	}

	if err := s.objectStorage.Put(ctx, key.Key(), body, f.Size, storage.PutOptions{
		ContentType: f.ContentType,
		Metadata:    metadata,
	}); err != nil {
		slog.ErrorContext(ctx, "upload failed", "key", key.Key(), "error", err)
		return model.MediaObject{}, &model.TransferError{Op: "put", Key: key.Key(), Err: err}
	}

	slog.DebugContext(ctx, "object stored", "key", key.Key(), "size", f.Size)
	return model.MediaObject{
		Key:         key.Key(),
		Owner:       owner,
		EventID:     eventID,
		Class:       key.Class,
		ContentType: f.ContentType,
		Size:        f.Size,
		UploadedAt:  uploadedAt,
	}, nil
}
