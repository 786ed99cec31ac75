package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
)

// Listing selectors used by the search page.
const (
	DefaultResultSelector = "div.search-result-item"
	resultTitleSelector   = "div.search-result-item-title"
	resultDateSelector    = "p.search-result-item-date"
)

// ParseResults splits a rendered search page into one SearchResult per
// listing item, in document order.
func ParseResults(html, selector string) ([]archive.SearchResult, error) {
	if selector == "" {
		selector = DefaultResultSelector
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var results []archive.SearchResult
	doc.Find(selector).Each(func(i int, item *goquery.Selection) {
		fragment, err := goquery.OuterHtml(item)
		if err != nil {
			fragment = ""
		}
		results = append(results, archive.SearchResult{
			Index:    i,
			Fragment: fragment,
			Title:    strings.TrimSpace(item.Find(resultTitleSelector).First().Text()),
			Date:     strings.TrimSpace(item.Find(resultDateSelector).First().Text()),
		})
	})
	return results, nil
}

// InSearch reports whether rawURL belongs to the search listing: the host
// matches searchHost (when set) and the path mentions "search".
func InSearch(rawURL, searchHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if searchHost != "" && !strings.EqualFold(u.Hostname(), searchHost) {
		return false
	}
	return strings.Contains(u.Path, "search")
}
