// Package issue orchestrates one newspaper issue from a search result to
// downloaded page images.
package issue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/locator"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/logging"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/metrics"
)

// Config holds the processor settings.
type Config struct {
	// SearchURL is where the browser returns after drifting out of the listing.
	SearchURL string
}

// Deps are the collaborators a Processor drives. Navigator may be nil, in
// which case results without a manifest identifier are reported and skipped.
type Deps struct {
	Locator   *locator.Extractor
	Resolver  archive.ManifestResolver
	Images    archive.ImageExtractor
	Fetcher   archive.ImageFetcher
	Navigator archive.Navigator
}

// Processor runs the per-issue state machine.
type Processor struct {
	cfg      Config
	locator  *locator.Extractor
	resolver archive.ManifestResolver
	images   archive.ImageExtractor
	fetcher  archive.ImageFetcher
	nav      archive.Navigator
	logger   *zap.Logger
}

// New builds a Processor.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Processor, error) {
	if deps.Resolver == nil || deps.Images == nil || deps.Fetcher == nil {
		return nil, errors.New("resolver, image extractor and fetcher are required")
	}
	if deps.Locator == nil {
		deps.Locator = locator.New(locator.DefaultHost)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		locator:  deps.Locator,
		resolver: deps.Resolver,
		images:   deps.Images,
		fetcher:  deps.Fetcher,
		nav:      deps.Navigator,
		logger:   logger.Named("processor"),
	}, nil
}

// run carries the mutable state of one Process call.
type run struct {
	report  *Report
	logger  *zap.Logger
	markup string
	// hops counts the navigations the slow path made away from the listing.
	hops int
}

// Process handles one search result. It never returns an error: failures are
// recorded on the report and the caller moves on to the next result.
func (p *Processor) Process(ctx context.Context, result archive.SearchResult) Report {
	report := Report{
		Index:  result.Index,
		Issue:  archive.Issue{Title: strings.TrimSpace(result.Title), Date: strings.TrimSpace(result.Date)},
		Path:   PathNone,
		Source: archive.SourceNone,
	}
	report.enter(StateSearchResultAvailable)
	r := &run{
		report: &report,
		logger: logging.WithContext(ctx, p.logger).With(zap.Int("index", result.Index)),
		markup: result.Fragment,
	}

	if report.Issue.Date == "" {
		if date, ok := p.locator.Date(result.Fragment); ok {
			report.Issue.Date = date
			r.logger.Debug("date taken from listing markup", zap.String("date", date))
		}
	}
	if names := p.locator.ImageFilenames(result.Fragment); len(names) > 0 {
		r.logger.Debug("potential image filenames in listing", zap.Strings("filenames", names))
	}

	id, ok := p.locator.ManifestID(result.Fragment)
	if ok {
		report.Path = PathListing
	} else {
		var err error
		id, err = p.slowPath(ctx, result, r)
		if err != nil {
			if errors.Is(err, archive.ErrDrifted) {
				p.recoverNavigation(ctx, r, err)
				return p.finish(r)
			}
			report.Err = err
			r.logger.Warn("no manifest id", zap.String("issue", report.Issue.Label()), zap.Error(err))
		}
	}

	var locators []archive.ImageLocator
	if id != "" {
		report.Issue.ManifestID = id
		report.enter(StateManifestIDKnown)
		r.logger = r.logger.With(zap.String("manifest_id", id))
		locators = p.extract(ctx, id, r)
	} else if ls := p.images.FromMarkup(r.markup); len(ls) > 0 {
		report.Source = archive.SourceMarkup
		locators = ls
	}

	report.enter(StateImagesExtracted)
	p.download(ctx, locators, r)

	if r.hops > 0 {
		if err := p.returnToListing(ctx, r); err != nil {
			p.recoverNavigation(ctx, r, err)
			return p.finish(r)
		}
	}
	report.enter(StateDone)
	return p.finish(r)
}

// slowPath opens the detail view to find the identifier, then visits the
// manifest page for missing metadata and fallback markup.
func (p *Processor) slowPath(ctx context.Context, result archive.SearchResult, r *run) (string, error) {
	if p.nav == nil {
		return "", fmt.Errorf("listing carries no identifier: %w", archive.ErrNoManifestID)
	}
	r.logger.Info("manifest id not in listing, opening detail view")

	detail, err := p.nav.OpenResult(ctx, result.Index)
	if err != nil {
		return "", fmt.Errorf("open result %d: %w: %w", result.Index, archive.ErrDrifted, err)
	}
	if p.nav.InSearch(detail.URL) {
		return "", fmt.Errorf("open result %d stayed on %s: %w", result.Index, detail.URL, archive.ErrDrifted)
	}
	r.hops = 1
	r.markup = detail.HTML

	id, ok := p.locator.ManifestID(detail.HTML)
	if ok {
		r.report.Path = PathDetail
	} else if id = firstPathSegment(detail.URL); id != "" {
		r.report.Path = PathDetailURL
		r.logger.Info("manifest id taken from detail address", zap.String("url", detail.URL), zap.String("manifest_id", id))
	} else {
		return "", fmt.Errorf("detail view %s: %w", detail.URL, archive.ErrNoManifestID)
	}

	ref := p.resolver.Resolve(id)
	page, err := p.nav.Navigate(ctx, ref.URL())
	if err != nil {
		return "", fmt.Errorf("open manifest page %s: %w: %w", ref.URL(), archive.ErrDrifted, err)
	}
	r.hops++
	r.markup = page.HTML
	p.fillFromHead(page, r)
	return id, nil
}

// fillFromHead completes missing title or date from the manifest page.
func (p *Processor) fillFromHead(page archive.Page, r *run) {
	issue := &r.report.Issue
	if issue.Title != "" && issue.Date != "" {
		return
	}
	if title, date, ok := p.locator.TitleAndDate(page.HTML); ok {
		if issue.Title == "" {
			issue.Title = title
		}
		if issue.Date == "" {
			issue.Date = date
		}
	}
	if issue.Title == "" || issue.Date == "" {
		title, date := locator.SplitPageTitle(page.Title)
		if issue.Title == "" {
			issue.Title = title
		}
		if issue.Date == "" {
			issue.Date = date
		}
	}
	r.logger.Debug("metadata from manifest page",
		zap.String("title", issue.Title),
		zap.String("date", issue.Date),
	)
}

// extract fetches the manifest and falls back to markup when it fails or yields nothing.
func (p *Processor) extract(ctx context.Context, id string, r *run) []archive.ImageLocator {
	ref := p.resolver.Resolve(id)
	manifest, err := p.resolver.Fetch(ctx, ref)
	if err == nil {
		r.report.enter(StateManifestResolved)
		if locators := p.images.FromManifest(manifest); len(locators) > 0 {
			r.report.Source = archive.SourceManifest
			return locators
		}
		r.logger.Info("manifest lists no images, trying markup", zap.String("url", ref.ManifestURL()))
	} else {
		r.report.Err = err
		r.logger.Warn("manifest unavailable, trying markup",
			zap.String("url", ref.ManifestURL()),
			zap.Error(err),
		)
	}

	locators := p.images.FromMarkup(r.markup)
	if len(locators) > 0 {
		r.report.Source = archive.SourceMarkup
	}
	return locators
}

func (p *Processor) download(ctx context.Context, locators []archive.ImageLocator, r *run) {
	issue := r.report.Issue
	dir := archive.IssueDir(issue)
	if len(locators) == 0 {
		r.logger.Info("no images found", zap.String("issue", issue.Label()))
		return
	}
	r.logger.Info("fetching images",
		zap.String("issue", issue.Label()),
		zap.String("path", dir),
		zap.Int("count", len(locators)),
		zap.String("source", string(r.report.Source)),
	)
	for _, loc := range locators {
		r.report.Outcomes = append(r.report.Outcomes, p.fetcher.FetchToPath(ctx, loc, dir))
	}
}

// returnToListing steps back once per slow-path navigation and stops as soon
// as the tab is on the listing again.
func (p *Processor) returnToListing(ctx context.Context, r *run) error {
	var last string
	for step := 1; step <= r.hops; step++ {
		page, err := p.nav.Back(ctx)
		if err != nil {
			return fmt.Errorf("back: %w: %w", archive.ErrDrifted, err)
		}
		if p.nav.InSearch(page.URL) {
			return nil
		}
		last = page.URL
		r.logger.Debug("back did not reach the listing", zap.Int("step", step), zap.String("url", page.URL))
	}
	return fmt.Errorf("back landed on %s: %w", last, archive.ErrDrifted)
}

// recoverNavigation puts the browser back on the search listing.
func (p *Processor) recoverNavigation(ctx context.Context, r *run, cause error) {
	r.report.enter(StateNavigationDrifted)
	r.report.Err = cause
	metrics.ObserveDriftRecovery()
	r.logger.Warn("navigation drifted, returning to search",
		zap.String("url", p.cfg.SearchURL),
		zap.Error(cause),
	)
	if p.nav == nil || p.cfg.SearchURL == "" {
		return
	}
	if _, err := p.nav.Navigate(ctx, p.cfg.SearchURL); err != nil {
		r.logger.Error("drift recovery failed", zap.String("url", p.cfg.SearchURL), zap.Error(err))
		return
	}
	r.report.Recovered = true
}

func (p *Processor) finish(r *run) Report {
	report := *r.report
	skipped, succeeded, failed := report.Counts()
	metrics.ObserveIssue(string(report.State))
	r.logger.Info("issue processed",
		zap.String("issue", report.Issue.Label()),
		zap.String("state", string(report.State)),
		zap.String("id_path", string(report.Path)),
		zap.String("source", string(report.Source)),
		zap.Int("skipped", skipped),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	return report
}

func firstPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return segment
}
