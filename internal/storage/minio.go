package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned by Stat when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// DefaultPartSize is the chunk size used for multipart uploads.
const DefaultPartSize = 5 * 1024 * 1024

// PutOptions describes how an object is written.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is the subset of object attributes the album needs.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// MinIOClient implements the object store on top of minio-go.
type MinIOClient struct {
	client     *minio.Client
	bucketName string
	publicHost string
	partSize   uint64
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint   string // e.g., "localhost:9000"
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicHost string // host part of public URLs, bucket is prepended
	PartSize   uint64
}

// NewMinIOClient creates a new MinIO storage client.
func NewMinIOClient(ctx context.Context, cfg MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	publicHost := cfg.PublicHost
	if publicHost == "" {
		publicHost = cfg.Endpoint
	}

	return &MinIOClient{
		client:     client,
		bucketName: cfg.Bucket,
		publicHost: publicHost,
		partSize:   partSize,
	}, nil
}

// Put stores an object in MinIO. Payloads above the part size go through a
// multipart upload; minio-go aborts the upload and drops its parts on error.
func (m *MinIOClient) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: opts.Metadata,
		PartSize:     m.partSize,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}

	return nil
}

// List returns every object below prefix. The minio listing channel follows
// continuation tokens until the listing is exhausted.
func (m *MinIOClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []ObjectInfo
	for object := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list minio objects: %w", object.Err)
		}
		out = append(out, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		})
	}

	slog.DebugContext(ctx, "listed objects", "prefix", prefix, "count", len(out))
	return out, nil
}

// ListPrefixes returns the immediate child prefixes of prefix, each ending in '/'.
func (m *MinIOClient) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []string
	for object := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list minio prefixes: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			out = append(out, object.Key)
		}
	}
	return out, nil
}

// Stat returns object attributes or ErrObjectNotFound.
func (m *MinIOClient) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat minio object: %w", err)
	}
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes one object.
func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete minio object: %w", err)
	}
	return nil
}

// PublicURL returns https://{bucket}.{publicHost}/{key}.
func (m *MinIOClient) PublicURL(key string) string {
	return PublicURL(m.bucketName, m.publicHost, key)
}
