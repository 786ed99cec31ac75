// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. KBSCRAPE_DOWNLOAD_ROOT.
const EnvPrefix = "KBSCRAPE"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Download DownloadConfig `mapstructure:"download"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ArchiveConfig locates the search interface and manifest service.
type ArchiveConfig struct {
	SearchURL    string `mapstructure:"search_url"`
	ManifestBase string `mapstructure:"manifest_base"`
	Referer      string `mapstructure:"referer"`
	UserAgent    string `mapstructure:"user_agent"`
	PaperID      string `mapstructure:"paper_id"`
}

// DownloadConfig controls page image downloads.
type DownloadConfig struct {
	Root              string        `mapstructure:"root"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ManifestConfig controls manifest fetches.
type ManifestConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"`
	WindowWidth    int           `mapstructure:"window_width"`
	WindowHeight   int           `mapstructure:"window_height"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	ResultSelector string        `mapstructure:"result_selector"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the status endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.search_url", "https://tidningar.kb.se/search")
	v.SetDefault("archive.manifest_base", "https://data.kb.se")
	v.SetDefault("archive.referer", "https://tidningar.kb.se/")
	v.SetDefault("archive.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("archive.paper_id", "https://libris.kb.se/m5z2w4lz3m2zxpk#it")
	v.SetDefault("download.root", "kb_newspapers")
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.retry_delay", "2s")
	v.SetDefault("download.request_timeout", "30s")
	v.SetDefault("download.requests_per_second", 0)
	v.SetDefault("manifest.timeout", "30s")
	v.SetDefault("manifest.max_body_bytes", 32<<20)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.nav_timeout", "20s")
	v.SetDefault("browser.settle_delay", "3s")
	v.SetDefault("browser.result_selector", "div.search-result-item")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := requireURL("archive.search_url", c.Archive.SearchURL); err != nil {
		return err
	}
	if err := requireURL("archive.manifest_base", c.Archive.ManifestBase); err != nil {
		return err
	}
	if strings.TrimSpace(c.Download.Root) == "" {
		return fmt.Errorf("download.root must be set")
	}
	if c.Download.MaxAttempts <= 0 {
		return fmt.Errorf("download.max_attempts must be > 0")
	}
	if c.Download.RetryDelay < 0 {
		return fmt.Errorf("download.retry_delay must be >= 0")
	}
	if c.Download.RequestTimeout <= 0 {
		return fmt.Errorf("download.request_timeout must be > 0")
	}
	if c.Download.RequestsPerSecond < 0 {
		return fmt.Errorf("download.requests_per_second must be >= 0")
	}
	if c.Manifest.Timeout <= 0 {
		return fmt.Errorf("manifest.timeout must be > 0")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must be >= 0")
	}
	return nil
}

func requireURL(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}
