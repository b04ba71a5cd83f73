// Package links builds the shareable paths for an event: where guests drop a
// selfie and where the gallery is viewed.
package links

import (
	"errors"
	"net/url"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
)

const (
	selfieIntakeRoot = "/upload_selfie/"
	galleryRoot      = "/view-event/"
)

var ErrInvalidOrigin = errors.New("origin must be an absolute http(s) URL")

// SelfieIntakePath is the relative path of the selfie intake page for an event.
func SelfieIntakePath(id model.EventID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	return selfieIntakeRoot + url.PathEscape(id.String()), nil
}

// GalleryPath is the relative path of the gallery view for an event.
func GalleryPath(id model.EventID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	return galleryRoot + url.PathEscape(id.String()), nil
}

// Absolute joins a relative link onto origin. Any path, query or fragment
// already on origin is replaced.
func Absolute(origin, relPath string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", errors.Join(ErrInvalidOrigin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidOrigin
	}
	ref, err := url.Parse(relPath)
	if err != nil {
		return "", err
	}
	u.Path, u.RawPath = ref.Path, ref.RawPath
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}
