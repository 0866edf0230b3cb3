// Package robustio wraps I/O operations that are flaky on some
// platforms, retrying them on ephemeral errors.
package robustio

import (
	"errors"
	"math/rand"
	"os"
	"syscall"
	"time"
)

// Retries are bounded by an arbitrary deadline rather than a count so
// a slow filesystem gets the same wall-clock budget as a fast one.
const arbitraryTimeout = 500 * time.Millisecond

// ReadFile is like os.ReadFile, but retries ephemeral errors.
func ReadFile(filename string) ([]byte, error) {
	var b []byte
	err := retry(func() (error, bool) {
		var err error
		b, err = os.ReadFile(filename)
		return err, isEphemeralError(err)
	})
	return b, err
}

func isEphemeralError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINTR
	}
	return false
}

// retry calls f until it succeeds, fails with a non-ephemeral error,
// or the deadline expires, sleeping with jittered backoff in between.
func retry(f func() (err error, mayRetry bool)) error {
	var lastErr error
	start := time.Now()
	nextSleep := 1 * time.Millisecond
	for {
		err, mayRetry := f()
		if err == nil || !mayRetry {
			return err
		}
		lastErr = err
		if time.Since(start)+nextSleep >= arbitraryTimeout {
			return lastErr
		}
		time.Sleep(nextSleep)
		nextSleep += time.Duration(rand.Int63n(int64(nextSleep)))
	}
}
