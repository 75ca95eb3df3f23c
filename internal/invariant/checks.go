package invariant

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caliperhq/gatecheck/internal/artifact"
	"github.com/caliperhq/gatecheck/internal/canonical"
	"github.com/caliperhq/gatecheck/internal/config"
	"github.com/caliperhq/gatecheck/internal/lattice"
	"github.com/caliperhq/gatecheck/internal/merkle"
	"github.com/caliperhq/gatecheck/internal/secrecy"
	"github.com/caliperhq/gatecheck/internal/solvency"
)

// LoadLattice finds and loads the first lattice document under the
// configured lattice directory, gated by the configured schema.
func LoadLattice(root string, cfg *config.Config) (*lattice.Lattice, string, error) {
	dir := filepath.Join(root, cfg.Paths.LatticeDir)
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("%w: no lattice files under %s", lattice.ErrMalformed, dir)
	}
	// YAML documents sort ahead of JSON within a name; take the first by
	// suffix group the way the artifact layout declares them.
	path := files[0]
	for _, f := range files {
		if ext := filepath.Ext(f); ext == ".yaml" || ext == ".yml" {
			path = f
			break
		}
	}
	lat, err := lattice.LoadFile(path, lattice.LoadOptions{
		SchemaPath: filepath.Join(root, cfg.Paths.LatticeSchema),
	})
	if err != nil {
		return nil, "", err
	}
	return lat, path, nil
}

// BudgetSolvency checks that every oversight plan satisfies the strictest
// covering tolerance under worst-case covering fits.
type BudgetSolvency struct {
	Root   string
	Config *config.Config
}

// Name implements Checker.
func (BudgetSolvency) Name() string { return "BUDGET_SOLVENCY" }

// Check implements Checker.
func (c BudgetSolvency) Check() Check {
	lat, latticePath, err := LoadLattice(c.Root, c.Config)
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}

	plans, err := solvency.LoadPlans(filepath.Join(c.Root, c.Config.Paths.PlansDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	if len(plans) == 0 {
		return Check{
			Name:    c.Name(),
			Result:  Skip,
			Message: fmt.Sprintf("No oversight plans found (lattice: %s)", filepath.Base(latticePath)),
		}
	}

	tolerances, err := solvency.LoadTolerances(filepath.Join(c.Root, c.Config.Paths.ContractsDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	if len(tolerances) == 0 {
		return Check{Name: c.Name(), Result: Fail, Message: "No safety contract tolerances found"}
	}

	fits, err := solvency.LoadFits(filepath.Join(c.Root, c.Config.Paths.FitsDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	if len(fits) == 0 {
		return Check{Name: c.Name(), Result: Fail, Message: "No risk fits found"}
	}

	result := solvency.Evaluate(lat, tolerances, fits, plans)
	if !result.Solvent() {
		return Check{
			Name:    c.Name(),
			Result:  Fail,
			Message: fmt.Sprintf("%d solvency issue(s) detected", len(result.Failures)),
			Details: result,
		}
	}
	return Check{
		Name:    c.Name(),
		Result:  Pass,
		Message: fmt.Sprintf("Verified %d oversight plan(s) against lattice and tolerances", len(plans)),
	}
}

// SecrecyAudit checks that no declared secret fingerprint appears in the
// protected corpus.
type SecrecyAudit struct {
	Root   string
	Config *config.Config
	Keys   secrecy.KeyProvider
}

// Name implements Checker.
func (SecrecyAudit) Name() string { return "SECRECY_FINGERPRINTS" }

// Check implements Checker.
func (c SecrecyAudit) Check() Check {
	audit := secrecy.RunAudit(secrecy.AuditConfig{
		RepoRoot:           c.Root,
		SuiteRegistryPath:  filepath.Join(c.Root, c.Config.Paths.SuiteRegistry),
		SecretRegistryPath: filepath.Join(c.Root, c.Config.Paths.SecretRegistry),
		ProtectedPaths:     c.Config.Secrecy.ProtectedPaths,
		Keys:               c.Keys,
		Concurrency:        c.Config.Secrecy.Concurrency,
		KeyEnv:             c.Config.Secrecy.KeyEnv,
	})
	result := Fail
	switch audit.Status {
	case secrecy.StatusPass:
		result = Pass
	case secrecy.StatusSkip:
		result = Skip
	}
	return Check{Name: c.Name(), Result: result, Message: audit.Message, Details: audit}
}

// TamperEvidence checks that claimed Merkle roots in after-action reports
// match roots recomputed from the artifacts they commit to, and that
// approval signatures reference active keys in the key registry.
type TamperEvidence struct {
	Root   string
	Config *config.Config
}

// Name implements Checker.
func (TamperEvidence) Name() string { return "TAMPER_EVIDENCE" }

// Check implements Checker.
func (c TamperEvidence) Check() Check {
	aars, err := loadAARs(filepath.Join(c.Root, c.Config.Paths.AARDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	ledgerRoot, err := lineageLedgerRoot(filepath.Join(c.Root, c.Config.Paths.LineageDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	activeKeys, haveRegistry, err := loadKeyRegistry(filepath.Join(c.Root, c.Config.Paths.KeysDir))
	if err != nil {
		return Check{Name: c.Name(), Result: Fail, Message: err.Error()}
	}
	if len(aars) == 0 && !haveRegistry {
		return Check{Name: c.Name(), Result: Skip, Message: "No after-action reports or key registry found"}
	}

	var failures []Finding
	for _, aar := range aars {
		rel := relativeTo(c.Root, aar.path)

		provenance, _ := aar.data["provenance"].(map[string]any)
		if claimed, _ := provenance["merkle_root"].(string); claimed != "" {
			riskModeling, _ := aar.data["risk_modeling"].(map[string]any)
			artifacts := objectList(riskModeling["risk_fit_artifacts"])
			if len(artifacts) > 0 {
				computed := merkle.ArtifactRoot(artifacts, "fit_hash")
				if computed != "" && !canonical.VerifyHash(claimed, computed) {
					failures = append(failures, Finding{File: rel, Reason: "provenance.merkle_root mismatch"})
				}
			}
		}

		lineageRefs, _ := aar.data["lineage_references"].(map[string]any)
		if claimed, _ := lineageRefs["ledger_root_hash"].(string); claimed != "" {
			switch {
			case ledgerRoot == "":
				failures = append(failures, Finding{File: rel, Reason: "ledger_root_hash claimed but no lineage entries found"})
			case !canonical.VerifyHash(claimed, ledgerRoot):
				failures = append(failures, Finding{File: rel, Reason: "ledger_root_hash mismatch"})
			}
		}

		governance, _ := aar.data["governance"].(map[string]any)
		approvals, _ := governance["approvals"].(map[string]any)
		for _, raw := range approvals {
			sig, _ := raw.(string)
			if !strings.HasPrefix(sig, "key:") {
				continue
			}
			ref := strings.TrimPrefix(sig, "key:")
			if !activeKeys[ref] {
				failures = append(failures, Finding{File: rel, Reason: fmt.Sprintf("Approval references unknown key: %s", ref)})
			}
		}
	}

	if len(failures) > 0 {
		return Check{
			Name:    c.Name(),
			Result:  Fail,
			Message: fmt.Sprintf("%d tamper-evidence issue(s) detected", len(failures)),
			Details: map[string]any{"failures": failures},
		}
	}
	var verified []string
	if len(aars) > 0 {
		verified = append(verified, fmt.Sprintf("%d after-action report(s)", len(aars)))
	}
	if haveRegistry {
		verified = append(verified, fmt.Sprintf("%d active key(s)", len(activeKeys)))
	}
	return Check{
		Name:    c.Name(),
		Result:  Pass,
		Message: "Verified " + strings.Join(verified, ", "),
	}
}

// Finding is one tamper-evidence failure.
type Finding struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type aarDoc struct {
	path string
	data map[string]any
}

func loadAARs(dir string) ([]aarDoc, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, err
	}
	var aars []aarDoc
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			return nil, err
		}
		if data, ok := doc.(map[string]any); ok {
			aars = append(aars, aarDoc{path: path, data: data})
		}
	}
	return aars, nil
}

// loadKeyRegistry loads the first registry document under dir that
// declares a "keys" list and returns the non-revoked key ids. The bool
// reports whether a registry was found at all.
func loadKeyRegistry(dir string) (map[string]bool, bool, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, false, err
	}
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			return nil, false, err
		}
		data, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		keys, ok := data["keys"].([]any)
		if !ok {
			continue
		}
		active := make(map[string]bool)
		for _, raw := range keys {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id, _ := entry["key_id"].(string)
			if id == "" {
				continue
			}
			if revoked, _ := entry["revoked"].(bool); revoked {
				continue
			}
			active[id] = true
		}
		return active, true, nil
	}
	return nil, false, nil
}

// lineageLedgerRoot recomputes the lineage ledger's Merkle root from the
// content hashes of every ledger entry, sorted.
func lineageLedgerRoot(dir string) (string, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return "", err
	}
	var hashes []string
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			return "", err
		}
		if _, ok := doc.(map[string]any); !ok {
			continue
		}
		h, err := canonical.ContentHash(doc)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return "", nil
	}
	sort.Strings(hashes)
	return merkle.Root(hashes), nil
}

func objectList(raw any) []map[string]any {
	list, _ := raw.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
