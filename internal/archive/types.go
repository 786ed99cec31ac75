package archive

import (
	"fmt"
	"time"
)

// Sentinels used for directory names when metadata is missing.
const (
	UnknownTitle = "Unknown"
	UnknownDate  = "Unknown_Date"
)

// Issue is one dated publication of a newspaper title. Fields are filled in
// incrementally as extraction strategies succeed.
type Issue struct {
	Title      string
	Date       string
	ManifestID string
}

// DirTitle returns the sanitized title used as the first directory level.
func (i Issue) DirTitle() string {
	if t := SanitizeTitle(i.Title); t != "" {
		return t
	}
	return UnknownTitle
}

// DirDate returns the normalized date used as the second directory level.
func (i Issue) DirDate() string {
	if d := NormalizeDate(i.Date); d != "" {
		return d
	}
	return UnknownDate
}

// Label is a short human readable description for log lines.
func (i Issue) Label() string {
	return fmt.Sprintf("%s %s", i.DirTitle(), i.DirDate())
}

// SearchResult is what the listing hands over for a single issue.
type SearchResult struct {
	Index    int
	Fragment string
	Title    string
	Date     string
}

// Page is a snapshot of the browser after a navigation step.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// ManifestReference is the canonical locator of a manifest document.
type ManifestReference struct {
	base string
	id   string
}

// NewManifestReference composes a reference from the fixed base endpoint and an identifier.
func NewManifestReference(base, id string) ManifestReference {
	return ManifestReference{base: trimTrailingSlash(base), id: id}
}

// ID returns the manifest identifier.
func (r ManifestReference) ID() string { return r.id }

// URL returns base + "/" + id.
func (r ManifestReference) URL() string { return r.base + "/" + r.id }

// ManifestURL returns the endpoint serving the structured manifest.
func (r ManifestReference) ManifestURL() string { return r.URL() + "/manifest" }

// String implements fmt.Stringer.
func (r ManifestReference) String() string { return r.URL() }

// Manifest is the subset of the IIIF presentation shape the pipeline walks:
// canvas -> annotation page -> annotation -> body.
type Manifest struct {
	ID    string   `json:"id"`
	Items []Canvas `json:"items"`
}

// Canvas is one page of the issue.
type Canvas struct {
	ID    string           `json:"id"`
	Items []AnnotationPage `json:"items"`
}

// AnnotationPage groups annotations painted onto a canvas.
type AnnotationPage struct {
	ID    string       `json:"id"`
	Items []Annotation `json:"items"`
}

// Annotation carries the resource bodies painted onto a canvas.
type Annotation struct {
	ID     string           `json:"id"`
	Bodies []AnnotationBody `json:"-"`
}

// AnnotationBody is the resource an annotation points at.
type AnnotationBody struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Format string `json:"format"`
}

// ImageLocator addresses one page image.
type ImageLocator struct {
	Address  string
	Filename string
}

// NewImageLocator normalizes the address and derives the filename from it.
func NewImageLocator(address string) ImageLocator {
	normalized := NormalizeAddress(address)
	return ImageLocator{
		Address:  normalized,
		Filename: FilenameFromAddress(normalized),
	}
}

// OutcomeKind tags a FetchOutcome.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeSkipped            OutcomeKind = "skipped"
	OutcomeSucceeded          OutcomeKind = "succeeded"
	OutcomeFailedAfterRetries OutcomeKind = "failed_after_retries"
)

// FetchOutcome is the result of fetching one ImageLocator.
type FetchOutcome struct {
	Locator  ImageLocator
	Kind     OutcomeKind
	Path     string
	Attempts int
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Failed reports whether the locator could not be fetched.
func (o FetchOutcome) Failed() bool {
	return o.Kind == OutcomeFailedAfterRetries
}

// ImageSource names the strategy that produced an issue's locators.
type ImageSource string

// Image sources, in the order they are tried.
const (
	SourceNone     ImageSource = "none"
	SourceManifest ImageSource = "manifest"
	SourceMarkup   ImageSource = "markup"
)
