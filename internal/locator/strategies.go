package locator

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy inspects a text payload and reports the values it recognizes.
// A nil or empty result means no match.
type Strategy struct {
	Name string
	Find func(payload string) []string
}

// firstSubmatch returns a strategy yielding the given capture group of the first match.
func firstSubmatch(name string, re *regexp.Regexp, group int) Strategy {
	return Strategy{
		Name: name,
		Find: func(payload string) []string {
			m := re.FindStringSubmatch(payload)
			if m == nil || group >= len(m) {
				return nil
			}
			v := strings.TrimSpace(m[group])
			if v == "" {
				return nil
			}
			return []string{v}
		},
	}
}

// allSubmatches returns a strategy yielding the capture group of every match, deduplicated.
func allSubmatches(name string, re *regexp.Regexp, group int) Strategy {
	return Strategy{
		Name: name,
		Find: func(payload string) []string {
			var out []string
			seen := make(map[string]struct{})
			for _, m := range re.FindAllStringSubmatch(payload, -1) {
				if group >= len(m) {
					continue
				}
				v := m[group]
				if _, ok := seen[v]; ok || v == "" {
					continue
				}
				seen[v] = struct{}{}
				out = append(out, v)
			}
			return out
		},
	}
}

// manifestIDStrategies are ordered from the listing thumbnail attributes to
// the escaped state blob of the detail view. The id segment ends at the first
// '/' or '%'.
func manifestIDStrategies(host string) []Strategy {
	h := regexp.QuoteMeta(host)
	return []Strategy{
		firstSubmatch("iiif-data-src",
			regexp.MustCompile(fmt.Sprintf(`data-src="https?://%s/iiif/\d+/([^/%%"'\s<>]+)`, h)), 1),
		firstSubmatch("iiif-src",
			regexp.MustCompile(fmt.Sprintf(`src="https?://%s/iiif/\d+/([^/%%"'\s<>]+)`, h)), 1),
		firstSubmatch("escaped-manifest-id",
			regexp.MustCompile(fmt.Sprintf(`"id":"https?:\\/\\/%s\\/([^/\\%%"]+)\\/manifest"`, h)), 1),
	}
}

var (
	reResultDate   = regexp.MustCompile(`<p class="search-result-item-date[^>]*>([^<]+)</p>`)
	reTitleDate    = regexp.MustCompile(`<title>([^|]+)\s+(\d{4}-\d{2}-\d{2})\s*[|]`)
	reFilenameDate = regexp.MustCompile(`bib\d+_(\d{4})(\d{2})(\d{2})_`)
	reFilename     = regexp.MustCompile(`bib\d+_\d+_\d+_\d+_\d+\.jp2`)
	reTitleTag     = regexp.MustCompile(`<title>([^|]+?)(?:\s+(\d{4}-\d{2}-\d{2}))?\s*[|]`)
	reMetaOGDate   = regexp.MustCompile(`<meta[^>]*og:title[^>]*content="[^"]*?\s+(\d{4}-\d{2}-\d{2})"`)
	reBareDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

func dateStrategies() []Strategy {
	return []Strategy{
		firstSubmatch("result-item-date", reResultDate, 1),
		firstSubmatch("title-tag-date", reTitleDate, 2),
		{
			Name: "filename-date",
			Find: func(payload string) []string {
				m := reFilenameDate.FindStringSubmatch(payload)
				if m == nil {
					return nil
				}
				return []string{m[1] + "-" + m[2] + "-" + m[3]}
			},
		},
	}
}

func imageFilenameStrategies() []Strategy {
	return []Strategy{
		allSubmatches("bib-jp2-token", reFilename, 0),
	}
}

// titleAndDateStrategies yield [title, date]; date may be empty.
func titleAndDateStrategies() []Strategy {
	return []Strategy{
		{
			Name: "head-title",
			Find: func(payload string) []string {
				m := reTitleTag.FindStringSubmatch(payload)
				if m == nil {
					return nil
				}
				title := strings.TrimSpace(m[1])
				date := strings.TrimSpace(m[2])
				if date == "" {
					if meta := reMetaOGDate.FindStringSubmatch(payload); meta != nil {
						date = meta[1]
					}
				}
				return []string{title, date}
			},
		},
	}
}

// SplitPageTitle splits a browser page title such as "Dagens Nyheter 1865-01-04 | Tidningar"
// into its title and trailing date. The date is empty when the last word is not a date.
func SplitPageTitle(pageTitle string) (string, string) {
	head := pageTitle
	if idx := strings.Index(head, "|"); idx >= 0 {
		head = head[:idx]
	}
	parts := strings.Fields(head)
	if len(parts) < 2 {
		return "", ""
	}
	last := parts[len(parts)-1]
	title := strings.Join(parts[:len(parts)-1], " ")
	if reBareDate.MatchString(last) {
		return title, last
	}
	return title, ""
}
