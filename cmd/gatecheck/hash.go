package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/canonical"
)

var hashVerify string

var hashCmd = &cobra.Command{
	Use:   "hash <path>...",
	Short: "Compute content hashes of artifacts",
	Long: `Hash files for provenance comparison. Structured artifacts (JSON/YAML)
are parsed and hashed in canonical form, so formatting changes never alter
identity; other files are hashed raw.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashVerify != "" && len(args) != 1 {
			return fmt.Errorf("--verify takes exactly one path")
		}
		for _, path := range args {
			h, err := canonical.FileHash(path)
			if err != nil {
				return err
			}
			if hashVerify != "" {
				if !canonical.VerifyHash(hashVerify, h) {
					fmt.Printf("MISMATCH %s %s\n", path, h)
					os.Exit(1)
				}
				fmt.Printf("OK %s\n", path)
				continue
			}
			fmt.Printf("%s  %s\n", h, path)
		}
		return nil
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashVerify, "verify", "", "Expected hash to verify against (prefix optional)")
	rootCmd.AddCommand(hashCmd)
}
