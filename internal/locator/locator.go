// Package locator finds manifest identifiers, dates, titles and page image
// filenames in raw listing and page markup using ordered text patterns.
package locator

// Kind selects which family of strategies Extract applies.
type Kind string

// Supported kinds.
const (
	KindManifestID    Kind = "manifest_id"
	KindDate          Kind = "date"
	KindImageFilename Kind = "image_filename"
	KindTitleAndDate  Kind = "title_and_date"
)

// DefaultHost is the archive data host embedded in thumbnail and manifest URLs.
const DefaultHost = "data.kb.se"

// Match is the result of a successful extraction.
type Match struct {
	Kind     Kind
	Strategy string
	Values   []string
}

// Value returns the first value or "".
func (m Match) Value() string {
	if len(m.Values) == 0 {
		return ""
	}
	return m.Values[0]
}

type rule struct {
	union      bool
	strategies []Strategy
}

// Extractor applies ordered strategies per kind. It is stateless after
// construction and safe for concurrent use.
type Extractor struct {
	rules map[Kind]rule
}

// New builds an Extractor whose identifier patterns match the given data host.
func New(host string) *Extractor {
	if host == "" {
		host = DefaultHost
	}
	return &Extractor{
		rules: map[Kind]rule{
			KindManifestID:    {strategies: manifestIDStrategies(host)},
			KindDate:          {strategies: dateStrategies()},
			KindImageFilename: {union: true, strategies: imageFilenameStrategies()},
			KindTitleAndDate:  {strategies: titleAndDateStrategies()},
		},
	}
}

// Strategies returns the ordered strategies used for kind.
func (e *Extractor) Strategies(kind Kind) []Strategy {
	r := e.rules[kind]
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Extract runs the strategies for kind. First-match kinds stop at the first
// strategy with a result; union kinds merge every strategy's values in order.
// A false return means nothing matched, which callers treat as a cue to fall back.
func (e *Extractor) Extract(payload string, kind Kind) (Match, bool) {
	r, ok := e.rules[kind]
	if !ok || payload == "" {
		return Match{}, false
	}
	if !r.union {
		for _, s := range r.strategies {
			if values := s.Find(payload); len(values) > 0 {
				return Match{Kind: kind, Strategy: s.Name, Values: values}, true
			}
		}
		return Match{}, false
	}

	merged := Match{Kind: kind}
	seen := make(map[string]struct{})
	for _, s := range r.strategies {
		for _, v := range s.Find(payload) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			merged.Values = append(merged.Values, v)
		}
	}
	if len(merged.Values) == 0 {
		return Match{}, false
	}
	return merged, true
}

// ManifestID returns the first identifier found in payload.
func (e *Extractor) ManifestID(payload string) (string, bool) {
	m, ok := e.Extract(payload, KindManifestID)
	return m.Value(), ok
}

// Date returns the first publication date found in payload.
func (e *Extractor) Date(payload string) (string, bool) {
	m, ok := e.Extract(payload, KindDate)
	return m.Value(), ok
}

// ImageFilenames returns every page image filename token in payload.
func (e *Extractor) ImageFilenames(payload string) []string {
	m, _ := e.Extract(payload, KindImageFilename)
	return m.Values
}

// TitleAndDate returns the title and optional date from a page head.
func (e *Extractor) TitleAndDate(payload string) (string, string, bool) {
	m, ok := e.Extract(payload, KindTitleAndDate)
	if !ok {
		return "", "", false
	}
	var date string
	if len(m.Values) > 1 {
		date = m.Values[1]
	}
	return m.Values[0], date, true
}
