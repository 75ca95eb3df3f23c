package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/invariant"
	"github.com/caliperhq/gatecheck/internal/lattice"
)

var latticeFile string

var latticeCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Query the context lattice",
	Long: `Load the context lattice and query the partial order over operating
contexts: coverage, ordering, joins, and meets.`,
}

var latticeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the loaded lattice",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := resolveLattice()
		if err != nil {
			return err
		}
		fmt.Printf("version: %s\n", lat.Version)
		fmt.Printf("dimensions: %d\n", len(lat.Dimensions))
		for _, name := range lat.DimensionNames() {
			fmt.Printf("  %s (%s)\n", name, lat.Dimensions[name].Kind)
		}
		ids := make([]string, 0, len(lat.Contexts))
		for id := range lat.Contexts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Printf("contexts: %d\n", len(ids))
		for _, id := range ids {
			fmt.Printf("  %s%s\n", id, descriptorSuffix(lat, id))
		}
		return nil
	},
}

var latticeCoversCmd = &cobra.Command{
	Use:   "covers <sup-context> <sub-context>",
	Short: "Check whether one context covers another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := resolveLattice()
		if err != nil {
			return err
		}
		covered, err := lat.Covers(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(covered)
		if !covered {
			os.Exit(1)
		}
		return nil
	},
}

var latticeLeqCmd = &cobra.Command{
	Use:   "leq <left-context> <right-context>",
	Short: "Check whether one context is at most as permissive as another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := resolveLattice()
		if err != nil {
			return err
		}
		leq, err := lat.Leq(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(leq)
		if !leq {
			os.Exit(1)
		}
		return nil
	},
}

var latticeJoinCmd = &cobra.Command{
	Use:   "join <context>...",
	Short: "Compute the least upper bound of contexts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return combineContexts(args, func(lat *lattice.Lattice, ids []string) (lattice.Descriptor, error) {
			return lat.Join(ids)
		})
	},
}

var latticeMeetCmd = &cobra.Command{
	Use:   "meet <context>...",
	Short: "Compute the greatest lower bound of contexts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return combineContexts(args, func(lat *lattice.Lattice, ids []string) (lattice.Descriptor, error) {
			return lat.Meet(ids)
		})
	},
}

var latticeIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index lattice versions and their content hashes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		index, err := lattice.BuildIndex(joinRoot(cfg.Paths.LatticeDir))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(index)
	},
}

func combineContexts(ids []string, op func(*lattice.Lattice, []string) (lattice.Descriptor, error)) error {
	lat, err := resolveLattice()
	if err != nil {
		return err
	}
	desc, err := op(lat, ids)
	if err != nil {
		return err
	}
	for _, name := range lat.DimensionNames() {
		fmt.Printf("%s: %s\n", name, desc.Values[name])
	}
	return nil
}

func descriptorSuffix(lat *lattice.Lattice, id string) string {
	desc, err := lat.Resolve(id)
	if err != nil {
		return ""
	}
	out := ""
	for _, name := range lat.DimensionNames() {
		out += fmt.Sprintf(" %s=%s", name, desc.Values[name])
	}
	return out
}

// resolveLattice loads the lattice named by --lattice, or discovers it
// under the configured lattice directory.
func resolveLattice() (*lattice.Lattice, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if latticeFile != "" {
		return lattice.LoadFile(latticeFile, lattice.LoadOptions{})
	}
	lat, _, err := invariant.LoadLattice(repoRoot, cfg)
	return lat, err
}

func init() {
	latticeCmd.PersistentFlags().StringVar(&latticeFile, "lattice", "", "Lattice document (default: discovered under the configured lattice dir)")
	latticeCmd.AddCommand(latticeShowCmd)
	latticeCmd.AddCommand(latticeCoversCmd)
	latticeCmd.AddCommand(latticeLeqCmd)
	latticeCmd.AddCommand(latticeJoinCmd)
	latticeCmd.AddCommand(latticeMeetCmd)
	latticeCmd.AddCommand(latticeIndexCmd)
	rootCmd.AddCommand(latticeCmd)
}
