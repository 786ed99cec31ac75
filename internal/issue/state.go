package issue

import (
	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
)

// State is a step in the life of one issue.
type State string

// Issue states. NavigationDrifted is reachable from any step that relied on the browser.
const (
	StateSearchResultAvailable State = "search_result_available"
	StateManifestIDKnown       State = "manifest_id_known"
	StateManifestResolved      State = "manifest_resolved"
	StateImagesExtracted       State = "images_extracted"
	StateDone                  State = "done"
	StateNavigationDrifted     State = "navigation_drifted"
)

// Path records how the manifest identifier was found.
type Path string

// Identifier paths.
const (
	PathListing   Path = "listing"
	PathDetail    Path = "detail_markup"
	PathDetailURL Path = "detail_url"
	PathNone      Path = "none"
)

// Report summarizes the processing of one search result.
type Report struct {
	Index     int
	Issue     archive.Issue
	State     State
	History   []State
	Path      Path
	Source    archive.ImageSource
	Recovered bool
	Outcomes  []archive.FetchOutcome
	// Err is the most significant non-fatal error seen: drift, missing identifier, or manifest failure.
	Err error
}

func (r *Report) enter(s State) {
	r.State = s
	r.History = append(r.History, s)
}

// Counts tallies outcomes by kind.
func (r Report) Counts() (skipped, succeeded, failed int) {
	for _, o := range r.Outcomes {
		switch o.Kind {
		case archive.OutcomeSkipped:
			skipped++
		case archive.OutcomeSucceeded:
			succeeded++
		case archive.OutcomeFailedAfterRetries:
			failed++
		}
	}
	return skipped, succeeded, failed
}

// Drifted reports whether the browser had to be returned to the search listing.
func (r Report) Drifted() bool {
	for _, s := range r.History {
		if s == StateNavigationDrifted {
			return true
		}
	}
	return false
}
