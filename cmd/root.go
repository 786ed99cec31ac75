// Package cmd defines the CLI commands for the kbscrape executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/app"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/config"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/logging"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/scrape"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the surface commands use, so tests can inject a fake.
type App interface {
	Run(ctx context.Context, from, to, paperID string) (scrape.RunReport, error)
	Logger() *zap.Logger
	Close()
}

type rootOptions struct {
	cfgFile string
	root    string
	addr    string
}

// newApp loads configuration and builds the application. It is a variable so
// tests can replace it.
var newApp = func(opts rootOptions) (App, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.root != "" {
		cfg.Download.Root = opts.root
	}
	if opts.addr != "" {
		cfg.Metrics.Addr = opts.addr
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "kbscrape",
		Short: "Download digitized newspaper page images from the KB archive.",
		Long: `kbscrape walks the KB newspaper search listing for one paper and date
range, resolves each issue's IIIF manifest and stores every page image under
<root>/<title>/<date>/. Files already on disk are never downloaded again.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "download root (overrides download.root)")
	cmd.PersistentFlags().StringVar(&opts.addr, "metrics-addr", "", "serve /metrics and /v1/progress on this address")

	cmd.AddCommand(newScrapeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
