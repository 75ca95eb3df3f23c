package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caliperhq/gatecheck/internal/artifact"
	"github.com/caliperhq/gatecheck/internal/merkle"
)

var (
	merkleLeaf      string
	merkleRoot      string
	merkleProofFile string
	merkleSorted    bool
)

var merkleCmd = &cobra.Command{
	Use:   "merkle",
	Short: "Build Merkle roots and verify inclusion proofs",
}

var merkleRootCmd = &cobra.Command{
	Use:   "root <leaf-hash>...",
	Short: "Compute the Merkle root of leaf hashes",
	Long: `Compute the Merkle root of the given leaf hashes in argument order.
With --sorted, leaves are sorted first, producing the order-independent
artifact-set root.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leaves := args
		if merkleSorted {
			artifacts := make([]map[string]any, len(args))
			for i, h := range args {
				artifacts[i] = map[string]any{"hash": h}
			}
			fmt.Println(merkle.ArtifactRoot(artifacts, "hash"))
			return nil
		}
		fmt.Println(merkle.Root(leaves))
		return nil
	},
}

var merkleVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a Merkle inclusion proof",
	Long: `Verify that a leaf hash is included under a root, given a proof file:
a JSON or YAML list of {hash, position} steps, position "left" or "right".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if merkleLeaf == "" || merkleRoot == "" || merkleProofFile == "" {
			return fmt.Errorf("--leaf, --root, and --proof are required")
		}
		doc, err := artifact.LoadDataFile(merkleProofFile)
		if err != nil {
			return err
		}
		steps, err := proofSteps(doc)
		if err != nil {
			return err
		}
		if !merkle.VerifyInclusion(merkleLeaf, steps, merkleRoot) {
			fmt.Println("NOT VERIFIED")
			os.Exit(1)
		}
		fmt.Println("VERIFIED")
		return nil
	},
}

func proofSteps(doc any) ([]merkle.ProofStep, error) {
	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("proof must be a list of steps")
	}
	steps := make([]merkle.ProofStep, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("proof step must be an object")
		}
		hash, _ := obj["hash"].(string)
		position, _ := obj["position"].(string)
		steps = append(steps, merkle.ProofStep{Hash: hash, Position: position})
	}
	return steps, nil
}

func init() {
	merkleRootCmd.Flags().BoolVar(&merkleSorted, "sorted", false, "Sort leaves first (order-independent artifact root)")
	merkleVerifyCmd.Flags().StringVar(&merkleLeaf, "leaf", "", "Leaf hash to verify")
	merkleVerifyCmd.Flags().StringVar(&merkleRoot, "root", "", "Expected root hash")
	merkleVerifyCmd.Flags().StringVar(&merkleProofFile, "proof", "", "Proof file (JSON/YAML list of steps)")
	merkleCmd.AddCommand(merkleRootCmd)
	merkleCmd.AddCommand(merkleVerifyCmd)
	rootCmd.AddCommand(merkleCmd)
}
