package scrape

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Listing defaults.
const (
	DefaultSearchURL = "https://tidningar.kb.se/search"
	// DefaultPaperID is Dagens Nyheter.
	DefaultPaperID = "https://libris.kb.se/m5z2w4lz3m2zxpk#it"
	dateLayout     = "2006-01-02"
)

// SearchURL composes the listing address for one paper and date range.
// A paperID that already contains '%' is taken as escaped.
func SearchURL(base, from, to, paperID string) (string, error) {
	if base == "" {
		base = DefaultSearchURL
	}
	if paperID == "" {
		paperID = DefaultPaperID
	}
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return "", fmt.Errorf("from date %q: %w", from, err)
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return "", fmt.Errorf("to date %q: %w", to, err)
	}
	if toDate.Before(fromDate) {
		return "", fmt.Errorf("to date %s is before from date %s", to, from)
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("search url: %w", err)
	}
	if !strings.Contains(paperID, "%") {
		paperID = url.QueryEscape(paperID)
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sq=%%2a&from=%s&to=%s&isPartOf.%%40id=%s", base, sep, from, to, paperID), nil
}
