package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://tidningar.kb.se/search", cfg.Archive.SearchURL)
	assert.Equal(t, "https://data.kb.se", cfg.Archive.ManifestBase)
	assert.Equal(t, "https://tidningar.kb.se/", cfg.Archive.Referer)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Download.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Download.RequestTimeout)
	assert.Zero(t, cfg.Download.RequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.Manifest.Timeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 20*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 3*time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, "div.search-result-item", cfg.Browser.ResultSelector)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
archive:
  search_url: http://127.0.0.1:9000/search
  paper_id: https://libris.kb.se/abc#it
download:
  root: /data/kb
  max_attempts: 5
  retry_delay: 500ms
  requests_per_second: 2.5
browser:
  headless: false
  settle_delay: 1s
logging:
  development: false
metrics:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000/search", cfg.Archive.SearchURL)
	assert.Equal(t, "https://libris.kb.se/abc#it", cfg.Archive.PaperID)
	assert.Equal(t, "/data/kb", cfg.Download.Root)
	assert.Equal(t, 5, cfg.Download.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.RetryDelay)
	assert.InDelta(t, 2.5, cfg.Download.RequestsPerSecond, 1e-9)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Second, cfg.Browser.SettleDelay)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	// untouched keys keep defaults
	assert.Equal(t, 30*time.Second, cfg.Download.RequestTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KBSCRAPE_DOWNLOAD_ROOT", "/tmp/kb-env")
	t.Setenv("KBSCRAPE_DOWNLOAD_MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kb-env", cfg.Download.Root)
	assert.Equal(t, 7, cfg.Download.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Archive:  ArchiveConfig{SearchURL: "https://tidningar.kb.se/search", ManifestBase: "https://data.kb.se"},
		Download: DownloadConfig{Root: "out", MaxAttempts: 3, RetryDelay: time.Second, RequestTimeout: time.Second},
		Manifest: ManifestConfig{Timeout: time.Second},
		Browser:  BrowserConfig{NavTimeout: time.Second},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing search url", func(c *Config) { c.Archive.SearchURL = "" }, "archive.search_url"},
		{"relative manifest base", func(c *Config) { c.Archive.ManifestBase = "data.kb.se" }, "archive.manifest_base"},
		{"missing root", func(c *Config) { c.Download.Root = " " }, "download.root"},
		{"zero attempts", func(c *Config) { c.Download.MaxAttempts = 0 }, "download.max_attempts"},
		{"negative delay", func(c *Config) { c.Download.RetryDelay = -time.Second }, "download.retry_delay"},
		{"zero request timeout", func(c *Config) { c.Download.RequestTimeout = 0 }, "download.request_timeout"},
		{"negative rps", func(c *Config) { c.Download.RequestsPerSecond = -1 }, "download.requests_per_second"},
		{"zero manifest timeout", func(c *Config) { c.Manifest.Timeout = 0 }, "manifest.timeout"},
		{"zero nav timeout", func(c *Config) { c.Browser.NavTimeout = 0 }, "browser.nav_timeout"},
		{"negative settle", func(c *Config) { c.Browser.SettleDelay = -1 }, "browser.settle_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
