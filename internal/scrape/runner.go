// Package scrape runs a batch of issues from one search listing.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/issue"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/logging"
)

// IssueProcessor handles one search result.
type IssueProcessor interface {
	Process(ctx context.Context, result archive.SearchResult) issue.Report
}

// Totals aggregates a run.
type Totals struct {
	Issues        int `json:"issues"`
	Drifted       int `json:"drifted"`
	WithoutImages int `json:"without_images"`
	Skipped       int `json:"skipped"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
}

// RunReport is returned by Run.
type RunReport struct {
	RunID     string
	SearchURL string
	Started   time.Time
	Finished  time.Time
	Issues    []issue.Report
	Totals    Totals
}

func (r *RunReport) add(rep issue.Report) {
	r.Issues = append(r.Issues, rep)
	r.Totals.Issues++
	if rep.Drifted() {
		r.Totals.Drifted++
	}
	if len(rep.Outcomes) == 0 {
		r.Totals.WithoutImages++
	}
	skipped, succeeded, failed := rep.Counts()
	r.Totals.Skipped += skipped
	r.Totals.Succeeded += succeeded
	r.Totals.Failed += failed
}

// Progress is a point-in-time view of the current or last run.
type Progress struct {
	RunID     string    `json:"run_id"`
	SearchURL string    `json:"search_url"`
	Running   bool      `json:"running"`
	Started   time.Time `json:"started"`
	Results   int       `json:"results"`
	Current   int       `json:"current"`
	Totals    Totals    `json:"totals"`
}

// Runner walks a listing one issue at a time.
type Runner struct {
	nav    archive.Navigator
	proc   IssueProcessor
	ids    archive.IDGenerator
	clock  archive.Clock
	logger *zap.Logger

	mu       sync.RWMutex
	progress Progress
}

// Progress returns a snapshot safe to read while Run is active.
func (r *Runner) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

func (r *Runner) update(fn func(*Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
}

// NewRunner wires a Runner.
func NewRunner(nav archive.Navigator, proc IssueProcessor, ids archive.IDGenerator, clock archive.Clock, logger *zap.Logger) (*Runner, error) {
	if nav == nil || proc == nil || ids == nil || clock == nil {
		return nil, errors.New("navigator, processor, id generator and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{nav: nav, proc: proc, ids: ids, clock: clock, logger: logger.Named("runner")}, nil
}

// Run processes every result of the listing at searchURL. The listing is
// re-read before each issue because the previous one may have navigated
// away. Only failures to reach the listing end the run early.
func (r *Runner) Run(ctx context.Context, searchURL string) (RunReport, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return RunReport{}, fmt.Errorf("run id: %w", err)
	}
	report := RunReport{RunID: runID, SearchURL: searchURL, Started: r.clock.Now()}
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	r.update(func(p *Progress) {
		*p = Progress{RunID: runID, SearchURL: searchURL, Running: true, Started: report.Started}
	})

	if _, err := r.nav.Navigate(ctx, searchURL); err != nil {
		r.finish(logger, &report)
		return report, fmt.Errorf("open search listing: %w", err)
	}
	results, err := r.nav.Results(ctx)
	if err != nil {
		r.finish(logger, &report)
		return report, fmt.Errorf("list results: %w", err)
	}
	total := len(results)
	logger.Info("search listing loaded", zap.String("url", searchURL), zap.Int("results", total))
	r.update(func(p *Progress) { p.Results = total })

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			r.finish(logger, &report)
			return report, fmt.Errorf("run canceled: %w", err)
		}
		if i > 0 {
			results, err = r.relist(ctx, searchURL)
			if err != nil {
				r.finish(logger, &report)
				return report, err
			}
		}
		if i >= len(results) {
			logger.Warn("listing shrank, stopping", zap.Int("index", i), zap.Int("results", len(results)))
			break
		}
		logger.Info("processing issue", zap.Int("index", i), zap.Int("of", total))
		r.update(func(p *Progress) { p.Current = i })
		report.add(r.proc.Process(ctx, results[i]))
		r.update(func(p *Progress) { p.Totals = report.Totals })
	}

	r.finish(logger, &report)
	return report, nil
}

// relist reads the listing, returning to searchURL once if the tab is elsewhere.
func (r *Runner) relist(ctx context.Context, searchURL string) ([]archive.SearchResult, error) {
	results, err := r.nav.Results(ctx)
	if err == nil {
		return results, nil
	}
	r.logger.Warn("listing unavailable, reopening search", zap.String("url", searchURL), zap.Error(err))
	if _, navErr := r.nav.Navigate(ctx, searchURL); navErr != nil {
		return nil, fmt.Errorf("reopen search listing: %w", navErr)
	}
	results, err = r.nav.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

func (r *Runner) finish(logger *zap.Logger, report *RunReport) {
	report.Finished = r.clock.Now()
	r.update(func(p *Progress) {
		p.Running = false
		p.Totals = report.Totals
	})
	t := report.Totals
	logger.Info("run finished",
		zap.Int("issues", t.Issues),
		zap.Int("drifted", t.Drifted),
		zap.Int("without_images", t.WithoutImages),
		zap.Int("skipped", t.Skipped),
		zap.Int("succeeded", t.Succeeded),
		zap.Int("failed", t.Failed),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
}
