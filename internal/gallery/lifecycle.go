package gallery

import (
	"context"
	"log/slog"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

// ObjectRemover deletes single objects from object storage.
type ObjectRemover interface {
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Manager deletes gallery objects and keeps the caller's view in step.
type Manager struct {
	store ObjectRemover
}

func NewManager(store ObjectRemover) *Manager {
	return &Manager{store: store}
}

// Delete removes one object. On success the returned view lacks exactly that
// key; on failure the original view is returned untouched.
func (m *Manager) Delete(ctx context.Context, view View, key string) (View, error) {
	if _, err := m.store.Stat(ctx, key); err != nil {
		return view, &model.TransferError{Op: "delete", Key: key, Err: err}
	}
	if err := m.store.Delete(ctx, key); err != nil {
		slog.ErrorContext(ctx, "delete failed", "key", key, "error", err)
		return view, &model.TransferError{Op: "delete", Key: key, Err: err}
	}

	next, _ := view.Remove(key)
	slog.InfoContext(ctx, "object deleted", "key", key)
	return next, nil
}
