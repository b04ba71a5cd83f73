package bulk

import (
	"fmt"
	"os"
)

const osCreateExclusive = os.O_WRONLY | os.O_CREATE | os.O_EXCL

// httpError is a non-2xx download response.
type httpError struct {
	StatusCode int
	Status     string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("failed to download image (%d): %s", e.StatusCode, e.Status)
}

type contentTypeError struct {
	ContentType string
}

func (e *contentTypeError) Error() string {
	return fmt.Sprintf("invalid image format received: %q", e.ContentType)
}
