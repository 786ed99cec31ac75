package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type scrapeOptions struct {
	from  string
	to    string
	paper string
}

func newScrapeCmd() *cobra.Command {
	var opts scrapeOptions
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download every issue of a paper published in a date range",
		Example: `  kbscrape scrape --from 1865-01-01 --to 1865-01-31
  kbscrape scrape --from 1900-06-01 --to 1900-06-30 --root ./papers`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.from, "from", "", "first publication date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "last publication date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.paper, "paper", "", "paper identifier (defaults to archive.paper_id)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runScrape(cmd *cobra.Command, opts scrapeOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := appInstance.Run(ctx, opts.from, opts.to, opts.paper)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scrape: %w", err)
	}

	t := report.Totals
	logger.Info("scrape finished",
		zap.String("run_id", report.RunID),
		zap.Int("issues", t.Issues),
		zap.Int("succeeded", t.Succeeded),
		zap.Int("skipped", t.Skipped),
		zap.Int("failed", t.Failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d issues: %d downloaded, %d skipped, %d failed\n",
		t.Issues, t.Succeeded, t.Skipped, t.Failed)
	return nil
}
