package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/invariant"
	"github.com/caliperhq/gatecheck/internal/secrecy"
)

var checkCmd = &cobra.Command{
	Use:   "check [name...]",
	Short: "Run the invariant checks",
	Long: `Run the governance invariant checks against the repository and report
the outcome. With no arguments every check runs; otherwise only the named
checks run. Exits non-zero if any check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		runner := &invariant.Runner{}
		runner.Register(invariant.BudgetSolvency{Root: repoRoot, Config: cfg})
		runner.Register(invariant.TamperEvidence{Root: repoRoot, Config: cfg})
		runner.Register(invariant.SecrecyAudit{Root: repoRoot, Config: cfg, Keys: secrecy.EnvKeyProvider{}})

		report := runner.Run(args)

		if cfg.Output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			renderReport(os.Stdout, report)
		}

		if !report.OK() {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
