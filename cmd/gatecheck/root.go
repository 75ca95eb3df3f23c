package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/config"
)

var (
	// Global flags
	repoRoot string
	verbose  bool
	output   string
	cfgFile  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gatecheck",
	Short: "Governance and audit engine for safety-gated releases",
	Long: `gatecheck verifies that governance artifacts are internally consistent,
provenance-linked, and policy-compliant before they may gate a release.

Core Commands:
  lattice      Query the context lattice (covers, leq, join, meet)
  hash         Compute content hashes of artifacts
  merkle       Build roots and verify inclusion proofs
  secrecy      Scan protected corpora for secret-suite leakage
  check        Run the invariant checks
  version      Show version information`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo-root", ".", "Repository root holding governance artifacts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <repo-root>/.gatecheck/config.yaml)")
}

// loadConfig resolves the effective configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	overrides := &config.Config{Output: output, Verbose: verbose}
	return config.Load(repoRoot, overrides)
}

// joinRoot resolves a repo-relative artifact path against --repo-root.
func joinRoot(rel string) string {
	return filepath.Join(repoRoot, rel)
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("GATECHECK_CONFIG", path)
}
