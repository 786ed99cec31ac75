package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		from    string
		to      string
		paper   string
		want    string
		wantErr bool
	}{
		{
			name: "default paper",
			from: "1865-01-04",
			to:   "1865-01-05",
			want: "https://tidningar.kb.se/search?q=%2a&from=1865-01-04&to=1865-01-05" +
				"&isPartOf.%40id=https%3A%2F%2Flibris.kb.se%2Fm5z2w4lz3m2zxpk%23it",
		},
		{
			name:  "pre-escaped paper",
			base:  "http://127.0.0.1:9000/search",
			from:  "1900-01-01",
			to:    "1900-01-01",
			paper: "https%3A%2F%2Flibris.kb.se%2Fabc%23it",
			want:  "http://127.0.0.1:9000/search?q=%2a&from=1900-01-01&to=1900-01-01&isPartOf.%40id=https%3A%2F%2Flibris.kb.se%2Fabc%23it",
		},
		{
			name: "base with query",
			base: "https://tidningar.kb.se/search?lang=sv",
			from: "1900-01-01",
			to:   "1900-01-02",
			want: "https://tidningar.kb.se/search?lang=sv&q=%2a&from=1900-01-01&to=1900-01-02" +
				"&isPartOf.%40id=https%3A%2F%2Flibris.kb.se%2Fm5z2w4lz3m2zxpk%23it",
		},
		{name: "bad from", from: "1865/01/04", to: "1865-01-05", wantErr: true},
		{name: "bad to", from: "1865-01-04", to: "tomorrow", wantErr: true},
		{name: "inverted range", from: "1865-01-05", to: "1865-01-04", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := SearchURL(tc.base, tc.from, tc.to, tc.paper)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
