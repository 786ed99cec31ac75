package archive

import (
	"context"
	"io"
	"time"
)

// ManifestResolver turns identifiers into references and fetches manifests.
type ManifestResolver interface {
	Resolve(id string) ManifestReference
	Fetch(ctx context.Context, ref ManifestReference) (Manifest, error)
}

// ImageExtractor yields image locators from a manifest tree or from raw markup.
type ImageExtractor interface {
	FromManifest(m Manifest) []ImageLocator
	FromMarkup(markup string) []ImageLocator
}

// ImageFetcher downloads a single locator into a directory.
type ImageFetcher interface {
	FetchToPath(ctx context.Context, loc ImageLocator, targetDir string) FetchOutcome
}

// Navigator is the browser session used when the listing does not carry a
// manifest identifier.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) (Page, error)
	OpenResult(ctx context.Context, index int) (Page, error)
	Back(ctx context.Context) (Page, error)
	Results(ctx context.Context) ([]SearchResult, error)
	InSearch(rawURL string) bool
}

// FileStore is the filesystem boundary for downloaded artifacts.
type FileStore interface {
	Exists(path string) (bool, error)
	Put(ctx context.Context, path string, data io.Reader) (int64, error)
}

// Limiter paces outgoing requests.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Sleeper waits between attempts; tests substitute a recording fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
