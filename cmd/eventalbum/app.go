package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/afero"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/bulk"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/config"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/gallery"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/ingestion"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
	"github.com/kacper-wojtaszczyk/eventalbum/internal/storage"
)

// objectStore is everything the commands need from a backend.
type objectStore interface {
	ingestion.ObjectStorage
	gallery.ObjectLister
	gallery.ObjectRemover
}

// app holds the lazily built dependencies shared by all subcommands.
type app struct {
	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config) (objectStore, error)
	fs         afero.Fs
	httpClient *http.Client
	logLevel   *slog.LevelVar

	// identity overrides from flags
	email, name, role string

	cfg   *config.Config
	store objectStore
}

func newApp(logLevel *slog.LevelVar) *app {
	return &app{
		loadConfig: config.Load,
		openStore:  openStore,
		fs:         afero.NewOsFs(),
		logLevel:   logLevel,
	}
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if a.logLevel != nil {
		level, _ := config.ParseLogLevel(cfg.LogLevel)
		a.logLevel.Set(level)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) objectStore(ctx context.Context) (objectStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// identity merges the --email/--name/--role flags over USER_* variables.
func (a *app) identity() (model.Identity, error) {
	cfg, err := a.config()
	if err != nil {
		return model.Identity{}, err
	}
	id := cfg.Identity()
	if a.email != "" {
		id.Email = a.email
	}
	if a.name != "" {
		id.Name = a.name
	}
	if a.role != "" {
		id.Role = a.role
	}
	return id, nil
}

func (a *app) ingestionService(ctx context.Context) (*ingestion.Service, error) {
	store, err := a.objectStore(ctx)
	if err != nil {
		return nil, err
	}
	return ingestion.NewService(store, storage.NewResolver(nil),
		ingestion.WithMaxFileSize(a.cfg.Upload.MaxFileSize),
		ingestion.WithConcurrency(a.cfg.Upload.Concurrency),
	), nil
}

func (a *app) downloader(dir string) *bulk.Downloader {
	opts := []bulk.Option{bulk.WithPacing(bulk.DefaultPacing)}
	if a.cfg != nil {
		opts = []bulk.Option{
			bulk.WithPacing(a.cfg.Download.Pacing),
			bulk.WithHTTPClient(&http.Client{Timeout: a.cfg.Download.Timeout}),
		}
	}
	if a.httpClient != nil {
		opts = append(opts, bulk.WithHTTPClient(a.httpClient))
	}
	return bulk.NewDownloader(a.fs, dir, opts...)
}

func openStore(ctx context.Context, cfg *config.Config) (objectStore, error) {
	switch cfg.Store.Backend {
	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Endpoint:   cfg.Store.Endpoint,
			AccessKey:  cfg.Store.AccessKey,
			SecretKey:  cfg.Store.SecretKey,
			Bucket:     cfg.Store.Bucket,
			Region:     cfg.Store.Region,
			PublicHost: cfg.Store.PublicHost,
			PartSize:   cfg.Upload.PartSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
		}
		return client, nil
	case config.BackendMinIO:
		client, err := storage.NewMinIOClient(ctx, storage.MinIOConfig{
			Endpoint:   cfg.Store.Endpoint,
			AccessKey:  cfg.Store.AccessKey,
			SecretKey:  cfg.Store.SecretKey,
			Bucket:     cfg.Store.Bucket,
			Region:     cfg.Store.Region,
			UseSSL:     cfg.Store.UseSSL,
			PublicHost: cfg.Store.PublicHost,
			PartSize:   uint64(cfg.Upload.PartSize),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize minio client: %w", err)
		}
		return client, nil
	default:
		return nil, &config.ErrInvalidEnvVar{Name: "STORE_BACKEND", Reason: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
	}
}
