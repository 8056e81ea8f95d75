package cli

import (
	"encoding/json"
	"fmt"

	"github.com/raysh454/sitelens/internal/app"
	"github.com/raysh454/sitelens/internal/audit"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	target   string
	axe      bool
	pa11y    bool
	keyboard bool
	ai       bool
	compact  bool
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the aggregate result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger := opts.logger(cmd, cfg)

			svc, comps, err := app.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			stderr := cmd.ErrOrStderr()
			res, err := svc.Analyze(cmd.Context(), &audit.AnalysisRequest{
				Target:         flags.target,
				EnableAxe:      flags.axe,
				EnablePa11y:    flags.pa11y,
				EnableKeyboard: flags.keyboard,
				EnableAI:       flags.ai,
				Progress: func(ev audit.ProgressEvent) {
					fmt.Fprintf(stderr, "[%3d%%] %s\n", ev.Progress, ev.Message)
				},
			})
			if err != nil {
				return fmt.Errorf("analyze %s: %w", flags.target, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !flags.compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.target, "target", "", "URL or host to analyze (required)")
	f.BoolVar(&flags.axe, "axe", false, "Run the axe-core rule engine")
	f.BoolVar(&flags.pa11y, "pa11y", false, "Run the pa11y rule engine (merges with baseline)")
	f.BoolVar(&flags.keyboard, "keyboard", false, "Run the keyboard navigation probe")
	f.BoolVar(&flags.ai, "ai", false, "Generate AI insights and fixes")
	f.BoolVar(&flags.compact, "compact", false, "Print JSON on a single line")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
