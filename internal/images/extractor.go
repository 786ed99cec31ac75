// Package images yields page image locators from a parsed manifest or,
// when the manifest is unavailable, from raw page markup.
package images

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
)

// DefaultSuffix identifies page image resources.
const DefaultSuffix = ".jp2"

// MarkupStrategy scans raw markup for image addresses.
type MarkupStrategy struct {
	Name string
	Find func(markup string) []string
}

// Extractor implements archive.ImageExtractor.
type Extractor struct {
	suffix  string
	markups []MarkupStrategy
}

// New builds an Extractor for resources ending in suffix.
func New(suffix string) *Extractor {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Extractor{
		suffix:  suffix,
		markups: markupStrategies(suffix),
	}
}

// FromManifest walks canvas -> annotation page -> annotation and collects
// every body id ending in the image suffix. Missing levels are skipped.
func (e *Extractor) FromManifest(m archive.Manifest) []archive.ImageLocator {
	var out []archive.ImageLocator
	for _, canvas := range m.Items {
		for _, page := range canvas.Items {
			for _, ann := range page.Items {
				for _, body := range ann.Bodies {
					if body.ID == "" || !strings.HasSuffix(body.ID, e.suffix) {
						continue
					}
					out = append(out, archive.NewImageLocator(body.ID))
				}
			}
		}
	}
	return archive.DedupeLocators(out)
}

// FromMarkup tries the markup strategies in order and returns the first non-empty result.
func (e *Extractor) FromMarkup(markup string) []archive.ImageLocator {
	if markup == "" {
		return nil
	}
	for _, s := range e.markups {
		addrs := s.Find(markup)
		if len(addrs) == 0 {
			continue
		}
		locs := make([]archive.ImageLocator, 0, len(addrs))
		for _, a := range addrs {
			locs = append(locs, archive.NewImageLocator(a))
		}
		if deduped := archive.DedupeLocators(locs); len(deduped) > 0 {
			return deduped
		}
	}
	return nil
}

// MarkupStrategies returns the ordered markup strategies.
func (e *Extractor) MarkupStrategies() []MarkupStrategy {
	out := make([]MarkupStrategy, len(e.markups))
	copy(out, e.markups)
	return out
}

// markupStrategies are ordered: escaped JSON ids in embedded state first,
// then plain anchor hrefs.
func markupStrategies(suffix string) []MarkupStrategy {
	sfx := regexp.QuoteMeta(suffix)
	escapedID := regexp.MustCompile(`"id":"(https?:\\/\\/[^"]+?` + sfx + `)"`)
	anchor := regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*` + sfx + `[^"']*)["']`)

	return []MarkupStrategy{
		{
			Name: "escaped-json-id",
			Find: func(markup string) []string {
				var out []string
				for _, m := range escapedID.FindAllStringSubmatch(markup, -1) {
					out = append(out, strings.ReplaceAll(m[1], `\/`, "/"))
				}
				return out
			},
		},
		{
			Name: "anchor-href",
			Find: func(markup string) []string {
				var out []string
				for _, m := range anchor.FindAllStringSubmatch(markup, -1) {
					out = append(out, m[1])
				}
				return out
			},
		},
	}
}
