package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tnprice/crawler/internal/scraper"
)

// newWebsitesCmd creates the 'websites' subcommand: list the configured
// crawl targets and their strategies.
func newWebsitesCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "websites",
		Short: "List configured websites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			names := make([]string, 0, len(a.cfg.Websites))
			for name := range a.cfg.Websites {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				site := a.cfg.Websites[name]
				strategyName := site.ScraperType
				if strategyName == "" {
					strategyName = scraper.ConfigTypeProductList
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-14s %s\n", name, strategyName, site.BaseURL)
			}
			return nil
		},
	}
}
