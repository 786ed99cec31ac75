package archive

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var invalidTitleChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]+`)

// SanitizeTitle strips everything but letters, digits, underscores, whitespace
// and dashes so the title can be used as a directory name.
func SanitizeTitle(raw string) string {
	return strings.TrimSpace(invalidTitleChars.ReplaceAllString(raw, ""))
}

// NormalizeDate trims the value and turns slash separated dates into dash separated ones.
func NormalizeDate(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "/", "-")
}

// NormalizeAddress collapses JSON-escaped path separators and drops stray
// backslashes left behind by upstream markup.
func NormalizeAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	addr = strings.ReplaceAll(addr, `\/`, "/")
	if strings.Contains(addr, `\`) {
		addr = strings.ReplaceAll(addr, `\`, "")
	}
	return addr
}

// FilenameFromAddress returns the percent-decoded last path segment.
func FilenameFromAddress(address string) string {
	if idx := strings.IndexAny(address, "?#"); idx >= 0 {
		address = address[:idx]
	}
	decoded, err := url.PathUnescape(address)
	if err != nil {
		decoded = address
	}
	name := decoded
	if idx := strings.LastIndex(decoded, "/"); idx >= 0 {
		name = decoded[idx+1:]
	}
	switch name {
	case ".", "..":
		return ""
	}
	return name
}

// IssueDir returns the title/date directory of the issue, relative to the download root.
func IssueDir(issue Issue) string {
	return filepath.Join(issue.DirTitle(), issue.DirDate())
}

// DedupeLocators keeps the first locator per normalized address.
func DedupeLocators(in []ImageLocator) []ImageLocator {
	if len(in) == 0 {
		return nil
	}
	out := make([]ImageLocator, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, loc := range in {
		key := NormalizeAddress(loc.Address)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if loc.Address != key {
			loc = NewImageLocator(key)
		}
		out = append(out, loc)
	}
	return out
}

func trimTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}
