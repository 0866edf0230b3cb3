package modpack

import (
	"errors"
	"fmt"
)

var (
	ErrNoManifest       = errors.New("modpack archive has no manifest.json")
	ErrNotModpack       = errors.New("not a minecraft modpack manifest")
	ErrSumsMismatch     = errors.New("checksum mismatch")
	ErrUnknownModMethod = errors.New("unknown mod method")
	ErrUnexpectedNode   = errors.New("unexpected html node")
)

// StatusError reports a non-2xx response for a download URL.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %q: status %d", e.URL, e.StatusCode)
}

// NotFound reports whether err is a StatusError with code 404.
func NotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}
