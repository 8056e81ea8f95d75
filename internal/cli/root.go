// Package cli holds the sitelens command tree.
package cli

import (
	"context"
	"io"

	"github.com/raysh454/sitelens/internal/app"
	"github.com/raysh454/sitelens/internal/logging"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type rootOptions struct {
	ConfigPath    string
	LogLevel      string
	ScannerURL    string
	EnrichmentURL string
}

// load reads the config file and environment, then applies flags that were
// set explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*app.Config, error) {
	cfg, err := app.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("scanner-url") {
		cfg.Scanner.BaseURL = o.ScannerURL
	}
	if flags.Changed("enrichment-url") {
		cfg.Enrichment.BaseURL = o.EnrichmentURL
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg *app.Config) logging.Logger {
	return logging.NewLogger(cmd.ErrOrStderr(), "sitelens", cfg.LogLevel)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sitelens",
		Short:         "Aggregate web audits into one scored report",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("sitelens version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config file (optional)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.ScannerURL, "scanner-url", "", "Base URL of the scanner service")
	pf.StringVar(&opts.EnrichmentURL, "enrichment-url", "", "Base URL of the AI enrichment service (empty disables AI)")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

// Execute runs the CLI with args, writing results to stdout and logs and
// progress to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
