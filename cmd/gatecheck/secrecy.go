package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/secrecy"
)

var secrecyCmd = &cobra.Command{
	Use:   "secrecy",
	Short: "Scan protected corpora for secret-suite leakage",
}

var secrecyScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fingerprint the protected corpus",
	Long: `Scan the configured protected paths with the hashing scheme declared in
the secret hash registry and print the resulting fingerprint set. No leak
comparison is made; use "secrecy audit" to gate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := secrecy.LoadHashRegistry(joinRoot(cfg.Paths.SecretRegistry))
		if err != nil {
			return err
		}
		scheme := registry.Scheme.WithDefaultKey(cfg.Secrecy.KeyEnv)
		scan, err := secrecy.ScanProtectedPaths(repoRoot, scheme, secrecy.EnvKeyProvider{}, cfg.Secrecy.ProtectedPaths, cfg.Secrecy.Concurrency)
		if err != nil {
			return err
		}
		fingerprints := make([]string, 0, len(scan.Fingerprints))
		for fp := range scan.Fingerprints {
			fingerprints = append(fingerprints, fp)
		}
		sort.Strings(fingerprints)
		for _, fp := range fingerprints {
			fmt.Println(fp)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "scanned %d file(s), %d error(s)\n", len(scan.ScannedFiles), len(scan.Errors))
		}
		for _, e := range scan.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		return nil
	},
}

var secrecyAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the corpus against the secret fingerprint registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		audit := secrecy.RunAudit(secrecy.AuditConfig{
			RepoRoot:           repoRoot,
			SuiteRegistryPath:  joinRoot(cfg.Paths.SuiteRegistry),
			SecretRegistryPath: joinRoot(cfg.Paths.SecretRegistry),
			ProtectedPaths:     cfg.Secrecy.ProtectedPaths,
			Keys:               secrecy.EnvKeyProvider{},
			Concurrency:        cfg.Secrecy.Concurrency,
			KeyEnv:             cfg.Secrecy.KeyEnv,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(audit); err != nil {
			return err
		}
		if audit.Status == secrecy.StatusFail {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	secrecyCmd.AddCommand(secrecyScanCmd)
	secrecyCmd.AddCommand(secrecyAuditCmd)
	rootCmd.AddCommand(secrecyCmd)
}
