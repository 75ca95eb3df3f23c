// Package merkle builds tamper-evidence roots and verifies inclusion
// proofs over sets of artifact hashes. Nodes hash the concatenation of
// their children's hex strings rather than decoded bytes, matching the
// ledger format the governance artifacts commit to.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/caliperhq/gatecheck/internal/canonical"
)

// ProofStep is one level of an inclusion proof: the sibling hash and which
// side of the concatenation it sits on.
type ProofStep struct {
	Hash     string `json:"hash" yaml:"hash"`
	Position string `json:"position" yaml:"position"`
}

// Proof step positions.
const (
	PositionLeft  = "left"
	PositionRight = "right"
)

// Root computes the Merkle root of a sequence of leaf hashes. Empty input
// yields the empty string (no root). A single leaf is its own root. The
// last node of an odd level is duplicated. Root is order-sensitive;
// permuting the leaves generally changes the result.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := make([]string, len(leaves))
	for i, leaf := range leaves {
		level[i] = canonical.NormalizeHash(leaf)
	}
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashHex(left+right))
		}
		level = next
	}
	return canonical.HashPrefix + level[0]
}

// VerifyInclusion reports whether leaf plus the proof steps reconstruct
// root. It never errors: empty leaf or root, or a step with an unknown
// position, simply fails verification.
func VerifyInclusion(leaf string, proof []ProofStep, root string) bool {
	if leaf == "" || root == "" {
		return false
	}
	current := canonical.NormalizeHash(leaf)
	for _, step := range proof {
		sibling := canonical.NormalizeHash(step.Hash)
		switch step.Position {
		case PositionLeft:
			current = hashHex(sibling + current)
		case PositionRight:
			current = hashHex(current + sibling)
		default:
			return false
		}
	}
	return canonical.VerifyHash(root, canonical.HashPrefix+current)
}

// ArtifactRoot computes a Merkle root over the named hash field of a set
// of artifacts. Artifacts without the field are skipped, and the extracted
// hashes are sorted first, so the result is independent of artifact order.
func ArtifactRoot(artifacts []map[string]any, hashField string) string {
	var hashes []string
	for _, art := range artifacts {
		if h, ok := art[hashField].(string); ok && h != "" {
			hashes = append(hashes, h)
		}
	}
	if len(hashes) == 0 {
		return ""
	}
	sort.Strings(hashes)
	return Root(hashes)
}

// FingerprintSetRoot commits to a fingerprint set as a whole: the sorted
// fingerprints joined by newlines, hashed once. Used for the
// suite_fingerprint_root field of secret hash registries.
func FingerprintSetRoot(fingerprints []string) string {
	sorted := make([]string, len(fingerprints))
	copy(sorted, fingerprints)
	sort.Strings(sorted)
	return canonical.HashString(strings.Join(sorted, "\n"))
}

func hashHex(combined string) string {
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
