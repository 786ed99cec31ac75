// Package download fetches page images into the download root with bounded
// retries. A file already present under its final name is never fetched again.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/clock/system"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/metrics"
)

// AcceptHeader is sent with every image request.
const AcceptHeader = "image/jpeg, image/png, image/jp2, */*"

// Defaults applied by New when the config leaves a field at zero.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// ErrEmptyFilename is reported when a locator has no usable last path segment.
var ErrEmptyFilename = errors.New("locator has no filename")

// Config controls image requests.
type Config struct {
	UserAgent      string
	Referer        string
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Engine implements archive.ImageFetcher.
type Engine struct {
	cfg     Config
	client  *http.Client
	store   archive.FileStore
	limiter archive.Limiter
	sleeper archive.Sleeper
	clock   archive.Clock
	retry   *FixedRetryPolicy
	logger  *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the client used for image requests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLimiter paces every attempt through l.
func WithLimiter(l archive.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(s archive.Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleeper = s
		}
	}
}

// WithClock replaces the clock used to time outcomes.
func WithClock(c archive.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an Engine writing through store.
func New(cfg Config, store archive.FileStore, opts ...Option) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	clk := system.New()
	e := &Engine{
		cfg:     cfg,
		client:  &http.Client{},
		store:   store,
		sleeper: clk,
		clock:   clk,
		retry:   NewFixedRetryPolicy(cfg.MaxAttempts, cfg.RetryDelay),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchToPath downloads loc into targetDir/filename, a path relative to the
// store root. Every call yields exactly one outcome.
func (e *Engine) FetchToPath(ctx context.Context, loc archive.ImageLocator, targetDir string) archive.FetchOutcome {
	start := e.clock.Now()
	loc = archive.NewImageLocator(loc.Address)
	out := archive.FetchOutcome{Locator: loc}

	finish := func(o archive.FetchOutcome) archive.FetchOutcome {
		o.Duration = e.clock.Now().Sub(start)
		e.logOutcome(o)
		metrics.ObserveImageOutcome(loc.Address, string(o.Kind), o.Bytes, o.Duration)
		return o
	}

	if loc.Filename == "" {
		out.Kind = archive.OutcomeFailedAfterRetries
		out.Err = &archive.FetchError{URL: loc.Address, Err: ErrEmptyFilename}
		return finish(out)
	}
	out.Path = filepath.Join(targetDir, loc.Filename)

	exists, err := e.store.Exists(out.Path)
	if err != nil {
		out.Kind = archive.OutcomeFailedAfterRetries
		out.Err = &archive.FetchError{URL: loc.Address, Err: err}
		return finish(out)
	}
	if exists {
		out.Kind = archive.OutcomeSkipped
		return finish(out)
	}

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		written, status, err := e.attempt(ctx, loc.Address, out.Path)
		if err == nil {
			metrics.ObserveImageAttempt("ok")
			out.Kind = archive.OutcomeSucceeded
			out.Bytes = written
			return finish(out)
		}
		if errors.Is(err, archive.ErrFileExists) {
			metrics.ObserveImageAttempt("exists")
			out.Kind = archive.OutcomeSkipped
			return finish(out)
		}
		metrics.ObserveImageAttempt("error")
		lastErr, lastStatus = err, status
		e.logger.Warn("image attempt failed",
			zap.String("url", loc.Address),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err),
		)

		if !e.retry.ShouldRetry(ctx, err, attempt) {
			break
		}
		if sleepErr := e.sleeper.Sleep(ctx, e.retry.Backoff(attempt)); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	out.Kind = archive.OutcomeFailedAfterRetries
	out.Err = &archive.FetchError{
		URL:        loc.Address,
		Attempts:   out.Attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
	return finish(out)
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// attempt performs one GET and streams a 2xx body into the store.
func (e *Engine) attempt(ctx context.Context, address, path string) (int64, int, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, address); err != nil {
			return 0, 0, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, address, http.NoBody)
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", AcceptHeader)
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	if e.cfg.Referer != "" {
		req.Header.Set("Referer", e.cfg.Referer)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("get %s: %w", address, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, resp.StatusCode, statusError{code: resp.StatusCode}
	}

	written, err := e.store.Put(reqCtx, path, resp.Body)
	if err != nil {
		return written, resp.StatusCode, fmt.Errorf("store %s: %w", path, err)
	}
	return written, resp.StatusCode, nil
}

func (e *Engine) logOutcome(o archive.FetchOutcome) {
	fields := []zap.Field{
		zap.String("url", o.Locator.Address),
		zap.String("path", o.Path),
		zap.String("outcome", string(o.Kind)),
		zap.Int("attempts", o.Attempts),
		zap.Int64("bytes", o.Bytes),
		zap.Duration("duration", o.Duration),
	}
	switch o.Kind {
	case archive.OutcomeFailedAfterRetries:
		e.logger.Error("image fetch failed", append(fields, zap.Error(o.Err))...)
	case archive.OutcomeSkipped:
		e.logger.Info("image already present", fields...)
	default:
		e.logger.Info("image stored", fields...)
	}
}
