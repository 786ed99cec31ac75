// Package browser drives a Chrome tab through the search listing and issue
// detail pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
)

var _ archive.Navigator = (*Session)(nil)

// ErrResultOutOfRange is returned by OpenResult when the listing has fewer items.
var ErrResultOutOfRange = errors.New("search result index out of range")

// Config controls the browser session.
type Config struct {
	Headless          bool
	UserAgent         string
	Referer           string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ResultSelector    string
	// SearchURL identifies the listing; its host scopes InSearch.
	SearchURL string
}

// Session implements archive.Navigator on a single Chrome tab. It is not
// safe for concurrent use by multiple issues; calls are serialized.
type Session struct {
	cfg         Config
	searchHost  string
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger

	mu      sync.Mutex
	started bool
}

// New prepares a session. Chrome is launched on first use.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if cfg.ResultSelector == "" {
		cfg.ResultSelector = DefaultResultSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var searchHost string
	if cfg.SearchURL != "" {
		u, err := url.Parse(cfg.SearchURL)
		if err != nil {
			return nil, fmt.Errorf("parse search url: %w", err)
		}
		searchHost = u.Hostname()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	return &Session{
		cfg:         cfg,
		searchHost:  searchHost,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger.Named("browser"),
	}, nil
}

// Close shuts the tab and the browser down.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// Navigate loads rawURL and returns the settled page.
func (s *Session) Navigate(ctx context.Context, rawURL string) (archive.Page, error) {
	s.logger.Debug("navigate", zap.String("url", rawURL))
	return s.run(ctx, "navigate",
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// OpenResult clicks the index-th listing item and returns the page it opens.
func (s *Session) OpenResult(ctx context.Context, index int) (archive.Page, error) {
	s.logger.Debug("open result", zap.Int("index", index))
	var nodes []*cdp.Node
	click := chromedp.ActionFunc(func(ctx context.Context) error {
		if index < 0 || index >= len(nodes) {
			return fmt.Errorf("%w: %d of %d", ErrResultOutOfRange, index, len(nodes))
		}
		return chromedp.MouseClickNode(nodes[index]).Do(ctx)
	})
	return s.run(ctx, "open result",
		chromedp.WaitVisible(s.cfg.ResultSelector, chromedp.ByQuery),
		chromedp.Nodes(s.cfg.ResultSelector, &nodes, chromedp.ByQueryAll),
		click,
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Back goes one step back in the tab history.
func (s *Session) Back(ctx context.Context) (archive.Page, error) {
	s.logger.Debug("back")
	return s.run(ctx, "back",
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Results parses the listing currently shown in the tab.
func (s *Session) Results(ctx context.Context) ([]archive.SearchResult, error) {
	page, err := s.run(ctx, "list results",
		chromedp.WaitVisible(s.cfg.ResultSelector, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	return ParseResults(page.HTML, s.cfg.ResultSelector)
}

// InSearch reports whether rawURL is on the search listing.
func (s *Session) InSearch(rawURL string) bool {
	return InSearch(rawURL, s.searchHost)
}

// run executes actions under the navigation timeout, waits for the page to
// settle and snapshots it.
func (s *Session) run(ctx context.Context, op string, actions ...chromedp.Action) (archive.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.start(); err != nil {
		return archive.Page{}, err
	}

	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var page archive.Page
	all := append(actions,
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.Location(&page.URL),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err := chromedp.Run(runCtx, all...); err != nil {
		return archive.Page{}, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// start launches Chrome on the tab context so later timeouts never own the browser.
func (s *Session) start() error {
	if s.started {
		return nil
	}
	if err := chromedp.Run(s.tabCtx, s.networkSetupAction()); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	s.started = true
	return nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if s.cfg.Referer != "" {
			if err := network.SetExtraHTTPHeaders(network.Headers{"Referer": s.cfg.Referer}).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}
