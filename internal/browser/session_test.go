package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{SettleDelay: -time.Second}, nil)
	require.Error(t, err)

	_, err = New(Config{SearchURL: "http://[::1"}, nil)
	require.Error(t, err)

	s, err := New(Config{SearchURL: "https://tidningar.kb.se/search"}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 20*time.Second, s.cfg.NavigationTimeout)
	assert.Equal(t, DefaultResultSelector, s.cfg.ResultSelector)
	assert.True(t, s.InSearch("https://tidningar.kb.se/search?q=x"))
	assert.False(t, s.InSearch("https://example.com/search"))
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestSessionAgainstLocalSite(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head><title>Sök</title></head><body>
<div class="search-result-item"><a href="/dark-1/part/1">
<div class="search-result-item-title">Dagens Nyheter</div>
<p class="search-result-item-date">1865-01-04</p></a></div>
</body></html>`)
	})
	mux.HandleFunc("/dark-1/part/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head><title>Dagens Nyheter 1865-01-04 | Tidningar</title></head><body>detail</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := New(Config{Headless: true, SearchURL: srv.URL + "/search", NavigationTimeout: 15 * time.Second}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	page, err := s.Navigate(ctx, srv.URL+"/search")
	require.NoError(t, err)
	assert.True(t, s.InSearch(page.URL))

	results, err := s.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Dagens Nyheter", results[0].Title)

	detail, err := s.OpenResult(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, detail.URL, "/dark-1/part/1")
	assert.Equal(t, "Dagens Nyheter 1865-01-04 | Tidningar", detail.Title)

	back, err := s.Back(ctx)
	require.NoError(t, err)
	assert.True(t, s.InSearch(back.URL))

	_, err = s.OpenResult(ctx, 5)
	require.ErrorIs(t, err, ErrResultOutOfRange)
}

func TestOpenResultSettlesOnce(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><div class="search-result-item"><a href="/issue-1/part/1">Dagens Nyheter</a></div></body></html>`)
	})
	mux.HandleFunc("/issue-1/part/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>detail</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	const settle = 800 * time.Millisecond
	s, err := New(Config{Headless: true, SearchURL: srv.URL + "/search", SettleDelay: settle, NavigationTimeout: 15 * time.Second}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Navigate(ctx, srv.URL+"/search")
	require.NoError(t, err)

	start := time.Now()
	detail, err := s.OpenResult(ctx, 0)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Contains(t, detail.URL, "/issue-1/part/1")
	assert.GreaterOrEqual(t, elapsed, settle)
	assert.Less(t, elapsed, 2*settle, "detail view waited for the settle delay more than once")
}
