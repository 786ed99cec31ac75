// Package app wires configuration into the long-lived services of a scrape run.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/api"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/browser"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/clock/system"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/config"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/download"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/id/uuid"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/images"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/issue"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/locator"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/manifest"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/metrics"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/scrape"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/storage/local"
)

// App holds the services shared by every run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *local.Store
	session  *browser.Session
	nav      archive.Navigator
	deps     issue.Deps
	clock    *system.Clock
	progress progressHolder
}

// Option customizes New.
type Option func(*options)

type options struct {
	navigator archive.Navigator
}

// WithNavigator replaces the Chrome session, e.g. with a scripted navigator.
func WithNavigator(nav archive.Navigator) Option {
	return func(o *options) { o.navigator = nav }
}

// New builds every long-lived component from cfg. It fails fast when the
// download root is unusable.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	base, err := url.Parse(cfg.Archive.ManifestBase)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("parse manifest base %q: %w", cfg.Archive.ManifestBase, ErrInvalidManifestBase)
	}

	store, err := local.New(local.Config{BaseDir: cfg.Download.Root})
	if err != nil {
		return nil, fmt.Errorf("open download root: %w", err)
	}

	clk := system.New()
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Download.RequestsPerSecond})
	engine := download.New(download.Config{
		UserAgent:      cfg.Archive.UserAgent,
		Referer:        cfg.Archive.Referer,
		MaxAttempts:    cfg.Download.MaxAttempts,
		RetryDelay:     cfg.Download.RetryDelay,
		RequestTimeout: cfg.Download.RequestTimeout,
	}, store,
		download.WithLimiter(limiter),
		download.WithSleeper(clk),
		download.WithClock(clk),
		download.WithLogger(logger),
	)

	resolver := manifest.New(manifest.Config{
		BaseURL:      cfg.Archive.ManifestBase,
		UserAgent:    cfg.Archive.UserAgent,
		Referer:      cfg.Archive.Referer,
		Timeout:      cfg.Manifest.Timeout,
		MaxBodyBytes: cfg.Manifest.MaxBodyBytes,
	}, nil, logger)

	a := &App{cfg: cfg, logger: logger, store: store, clock: clk, nav: o.navigator}
	if a.nav == nil {
		a.session, err = browser.New(browser.Config{
			Headless:          cfg.Browser.Headless,
			UserAgent:         cfg.Archive.UserAgent,
			Referer:           cfg.Archive.Referer,
			WindowWidth:       cfg.Browser.WindowWidth,
			WindowHeight:      cfg.Browser.WindowHeight,
			NavigationTimeout: cfg.Browser.NavTimeout,
			SettleDelay:       cfg.Browser.SettleDelay,
			ResultSelector:    cfg.Browser.ResultSelector,
			SearchURL:         cfg.Archive.SearchURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init browser: %w", err)
		}
		a.nav = a.session
	}

	a.deps = issue.Deps{
		Locator:   locator.New(base.Host),
		Resolver:  resolver,
		Images:    images.New(images.DefaultSuffix),
		Fetcher:   engine,
		Navigator: a.nav,
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the download root.
func (a *App) Store() *local.Store { return a.store }

// Run scrapes one paper over an inclusive date range. An empty paperID uses
// the configured default. When metrics.addr is set the status endpoint is
// served for the duration of the run.
func (a *App) Run(ctx context.Context, from, to, paperID string) (scrape.RunReport, error) {
	if paperID == "" {
		paperID = a.cfg.Archive.PaperID
	}
	searchURL, err := scrape.SearchURL(a.cfg.Archive.SearchURL, from, to, paperID)
	if err != nil {
		return scrape.RunReport{}, err
	}

	proc, err := issue.New(issue.Config{SearchURL: searchURL}, a.deps, a.logger)
	if err != nil {
		return scrape.RunReport{}, fmt.Errorf("init processor: %w", err)
	}
	runner, err := scrape.NewRunner(a.nav, proc, uuid.New(), a.clock, a.logger)
	if err != nil {
		return scrape.RunReport{}, fmt.Errorf("init runner: %w", err)
	}
	a.progress.set(runner)

	if a.cfg.Metrics.Addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- api.Serve(srvCtx, a.cfg.Metrics.Addr, api.NewRouter(&a.progress, a.logger), a.logger)
		}()
		defer func() {
			stop()
			if err := <-done; err != nil {
				a.logger.Warn("status endpoint stopped with error", zap.Error(err))
			}
		}()
	}

	a.logger.Info("starting run",
		zap.String("url", searchURL),
		zap.String("root", a.store.BaseDir()),
	)
	return runner.Run(ctx, searchURL)
}

// Progress reports the state of the current or last run.
func (a *App) Progress() scrape.Progress { return a.progress.Progress() }

// Close releases the browser.
func (a *App) Close() {
	if a.session != nil {
		a.session.Close()
	}
	_ = a.logger.Sync()
}

// ErrInvalidManifestBase is returned when the manifest base has no host.
var ErrInvalidManifestBase = errors.New("manifest base must be an absolute URL")

type progressHolder struct {
	mu     sync.RWMutex
	runner *scrape.Runner
}

func (h *progressHolder) set(r *scrape.Runner) {
	h.mu.Lock()
	h.runner = r
	h.mu.Unlock()
}

func (h *progressHolder) Progress() scrape.Progress {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.runner == nil {
		return scrape.Progress{}
	}
	return h.runner.Progress()
}
