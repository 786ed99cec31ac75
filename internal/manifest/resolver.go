// Package manifest resolves issue identifiers into IIIF manifest endpoints
// and fetches them with a Colly collector.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/metrics"
)

// AcceptHeader is sent with every manifest request.
const AcceptHeader = "application/json, text/plain, */*"

// Config controls manifest requests.
type Config struct {
	BaseURL      string
	UserAgent    string
	Referer      string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Resolver implements archive.ManifestResolver.
type Resolver struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Resolver. A nil transport uses a pooled default.
func New(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Resolver{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Resolve composes the canonical reference. It performs no I/O.
func (r *Resolver) Resolve(id string) archive.ManifestReference {
	return archive.NewManifestReference(r.cfg.BaseURL, id)
}

type fetchState struct {
	status int
	body   []byte
	err    error
}

// Fetch performs a single GET against ref's manifest endpoint and parses the body.
// Failures are returned as *archive.ResolutionError; there are no retries here.
func (r *Resolver) Fetch(ctx context.Context, ref archive.ManifestReference) (archive.Manifest, error) {
	target := ref.ManifestURL()
	state := &fetchState{}

	collector := r.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}
	r.configureCollectorHooks(collector, state)

	start := time.Now()
	if err := r.runCollector(ctx, collector, target, state); err != nil {
		metrics.ObserveManifestFetch(string(archive.ResolutionNetwork))
		return archive.Manifest{}, &archive.ResolutionError{Kind: archive.ResolutionNetwork, URL: target, Err: err}
	}

	if state.status < 200 || state.status > 299 {
		metrics.ObserveManifestFetch(string(archive.ResolutionBadStatus))
		return archive.Manifest{}, &archive.ResolutionError{
			Kind:       archive.ResolutionBadStatus,
			URL:        target,
			StatusCode: state.status,
		}
	}

	var m archive.Manifest
	if err := json.Unmarshal(state.body, &m); err != nil {
		metrics.ObserveManifestFetch(string(archive.ResolutionMalformed))
		return archive.Manifest{}, &archive.ResolutionError{
			Kind:       archive.ResolutionMalformed,
			URL:        target,
			StatusCode: state.status,
			Err:        fmt.Errorf("decode manifest: %w", err),
		}
	}

	metrics.ObserveManifestFetch("ok")
	r.logger.Debug("manifest fetched",
		zap.String("url", target),
		zap.Int("canvases", len(m.Items)),
		zap.Duration("dur", time.Since(start)),
	)
	return m, nil
}

func (r *Resolver) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", AcceptHeader)
		if r.cfg.Referer != "" {
			req.Headers.Set("Referer", r.cfg.Referer)
		}
		if r.cfg.UserAgent != "" {
			req.Headers.Set("User-Agent", r.cfg.UserAgent)
		}
	})

	hooks.OnResponse(func(resp *colly.Response) {
		state.status = resp.StatusCode
		state.body = append([]byte(nil), resp.Body...)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		state.err = err
	})
}

func (r *Resolver) runCollector(ctx context.Context, collector *colly.Collector, target string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("manifest fetch canceled: %w", ctx.Err())
	case err := <-done:
		if state.err != nil {
			return fmt.Errorf("manifest response failed: %w", state.err)
		}
		if err != nil {
			return fmt.Errorf("manifest visit failed: %w", err)
		}
		if state.status == 0 {
			return errors.New("manifest fetch produced no response")
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
