// Package cmd implements the command-line interface for FunnelForge.
// It provides the root command and subcommands for crawling, auditing,
// classifying, and generating funnel content.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	auditcmd "github.com/jonesrussell/funnelforge/cmd/audit"
	classifycmd "github.com/jonesrussell/funnelforge/cmd/classify"
	crawlcmd "github.com/jonesrussell/funnelforge/cmd/crawl"
	generatecmd "github.com/jonesrussell/funnelforge/cmd/generate"
	pagescmd "github.com/jonesrussell/funnelforge/cmd/pages"
	schedulercmd "github.com/jonesrussell/funnelforge/cmd/scheduler"
	workercmd "github.com/jonesrussell/funnelforge/cmd/worker"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// rootCmd represents the root command for the FunnelForge CLI.
	rootCmd = &cobra.Command{
		Use:   "funnelforge",
		Short: "An SEO funnel research and content pipeline",
		Long: `FunnelForge crawls a site's sitemap, audits and classifies the
discovered pages, resolves keyword clusters for them, and generates
funnel content anchored to the pages that convert.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("funnelforge version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(crawlcmd.Command())
	rootCmd.AddCommand(auditcmd.Command())
	rootCmd.AddCommand(classifycmd.Command())
	rootCmd.AddCommand(generatecmd.Command())
	rootCmd.AddCommand(workercmd.Command())
	rootCmd.AddCommand(schedulercmd.Command())
	rootCmd.AddCommand(pagescmd.Command())
}
