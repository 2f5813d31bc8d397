// Package cmd defines the CLI commands for the crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/config"
	"github.com/tnprice/crawler/internal/logging"
)

var cfgFile string

// app bundles the services shared by subcommands, built once in the root
// command's PersistentPreRunE.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadApp is a variable so tests can substitute a canned configuration.
var loadApp = func() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	var a *app

	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "Price-comparison crawl engine",
		Long: `crawler runs scrape jobs against configured e-commerce websites,
extracting product listings through a pooled headless browser. Sites are
described declaratively in the config file; each crawl produces a job
report with the extracted items and any partial failures.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = loadApp()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd(func() *app { return a }))
	cmd.AddCommand(newCancelCmd(func() *app { return a }))
	cmd.AddCommand(newWebsitesCmd(func() *app { return a }))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
