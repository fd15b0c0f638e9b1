package offline

import (
	"errors"
	"fmt"
)

var (
	// ErrInstallFailed is returned when the manifest could not be cached.
	ErrInstallFailed = errors.New("offline: install failed")
	// ErrNotInstalled is returned by Activate when the current namespace was
	// never installed.
	ErrNotInstalled = errors.New("offline: cache not installed")
	// ErrOffline matches every FetchError.
	ErrOffline = errors.New("offline: network unavailable")
)

// FetchError reports a miss whose network fetch failed outright. No
// placeholder response is substituted.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("offline: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrOffline }
