// Package bulk downloads many gallery images to a local directory, one at a
// time, spacing requests so neither the store nor the client gets throttled.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
)

const (
	DefaultPacing  = 800 * time.Millisecond
	DefaultTimeout = 30 * time.Second

	fallbackName = "image.jpg"
)

// ErrIncomplete marks a batch in which at least one URL failed.
var ErrIncomplete = errors.New("some downloads failed")

// Summary is the end-of-batch report.
type Summary struct {
	SuccessCount int
	FailedURLs   []string
	Errors       []error  // parallel to FailedURLs
	Saved        []string // local paths, in URL order
}

// Err returns nil when every URL succeeded, or an ErrIncomplete naming the
// failure count.
func (s Summary) Err() error {
	if len(s.FailedURLs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", ErrIncomplete, len(s.FailedURLs), s.SuccessCount+len(s.FailedURLs))
}

// Downloader fetches images over HTTP and writes them to a filesystem.
type Downloader struct {
	httpClient *http.Client
	fs         afero.Fs
	dir        string
	limiter    *rate.Limiter
}

// Option configures a Downloader.
type Option func(*Downloader)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.httpClient = c }
}

// WithPacing sets the minimum gap between consecutive transfers. Zero disables pacing.
func WithPacing(gap time.Duration) Option {
	return func(d *Downloader) {
		if gap <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(gap), 1)
	}
}

// NewDownloader creates a downloader writing into dir on fs.
func NewDownloader(fs afero.Fs, dir string, opts ...Option) *Downloader {
	d := &Downloader{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		fs:      fs,
		dir:     dir,
		limiter: rate.NewLimiter(rate.Every(DefaultPacing), 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadAll attempts every URL exactly once, in order. A failed item never
// stops the batch; a cancelled context marks the remaining URLs failed.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string) Summary {
	var summary Summary
	fail := func(u string, err error) {
		summary.FailedURLs = append(summary.FailedURLs, u)
		summary.Errors = append(summary.Errors, err)
	}

	for _, u := range urls {
		if err := d.limiter.Wait(ctx); err != nil {
			fail(u, &model.TransferError{Op: "get", Key: u, Err: err})
			continue
		}

		saved, err := d.Download(ctx, u)
		if err != nil {
			slog.WarnContext(ctx, "download failed", "url", u, "error", err)
			fail(u, err)
			continue
		}
		summary.SuccessCount++
		summary.Saved = append(summary.Saved, saved)
	}

	slog.InfoContext(ctx, "bulk download complete", "succeeded", summary.SuccessCount, "failed", len(summary.FailedURLs))
	return summary
}

// Download fetches one image and returns the local path it was written to.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		return "", &model.TransferError{Op: "get", Key: rawURL, Err: err}
	}
	defer body.Close()

	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	target, err := d.freePath(FileName(rawURL))
	if err != nil {
		return "", err
	}

	f, err := d.fs.OpenFile(target, osCreateExclusive, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = d.fs.Remove(target)
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}

	slog.DebugContext(ctx, "downloaded", "url", rawURL, "path", target)
	return target, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &httpError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "image/") {
		resp.Body.Close()
		return nil, &contentTypeError{ContentType: ct}
	}

	// Caller must close this body
	return resp.Body, nil
}

// freePath returns dir/name, or dir/stem-N.ext when name is already taken.
func (d *Downloader) freePath(name string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "-" + strconv.Itoa(i) + ext
		}
		p := filepath.Join(d.dir, candidate)
		exists, err := afero.Exists(d.fs, p)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", p, err)
		}
		if !exists {
			return p, nil
		}
	}
}

// FileName derives the local file name from the final, percent-decoded path
// segment of a URL.
func FileName(rawURL string) string {
	seg := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		seg = u.EscapedPath()
	}
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	if decoded, err := url.PathUnescape(seg); err == nil {
		seg = decoded
	}
	seg = strings.ReplaceAll(seg, "/", "_")
	seg = strings.ReplaceAll(seg, "\\", "_")
	if seg == "" || seg == "." || seg == ".." {
		return fallbackName
	}
	return seg
}
