package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrNoManifestID indicates every identifier strategy came up empty.
	ErrNoManifestID = errors.New("manifest id not found")
	// ErrDrifted indicates navigation ended outside the expected location.
	ErrDrifted = errors.New("navigation drifted")
	// ErrFileExists indicates the target file appeared before a download could be committed.
	ErrFileExists = errors.New("file already exists")
	// ErrNoNavigator indicates the slow path was needed but no browser session is attached.
	ErrNoNavigator = errors.New("navigator not configured")
)

// ResolutionKind classifies a manifest fetch failure.
type ResolutionKind string

// Resolution failure kinds.
const (
	ResolutionNetwork   ResolutionKind = "network"
	ResolutionBadStatus ResolutionKind = "bad_status"
	ResolutionMalformed ResolutionKind = "malformed"
)

// ResolutionError is returned when a manifest cannot be fetched or parsed.
type ResolutionError struct {
	Kind       ResolutionKind
	URL        string
	StatusCode int
	Err        error
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ResolutionBadStatus:
		return fmt.Sprintf("manifest %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("manifest %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// IsResolutionKind reports whether err is a ResolutionError of the given kind.
func IsResolutionKind(err error, kind ResolutionKind) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr) && resErr.Kind == kind
}

// FetchError records the last cause of a download that exhausted its attempts.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempts", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }
