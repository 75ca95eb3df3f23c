package secrecy

import (
	"sort"

	"github.com/caliperhq/gatecheck/internal/canonical"
)

// Status is the outcome of a secrecy audit.
type Status string

// Audit outcomes. An audit that cannot run reports StatusFail, never
// StatusPass: inability to check is not evidence of cleanliness.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Leak is one fingerprint collision between the secret registry and the
// scanned corpus: which suites declared it and which files produced it.
type Leak struct {
	Fingerprint string   `json:"fingerprint"`
	SuiteIDs    []string `json:"suite_ids"`
	Files       []string `json:"files"`
}

// Audit is the full result of a secrecy fingerprint audit.
type Audit struct {
	Status                  Status   `json:"status"`
	Message                 string   `json:"message"`
	SuiteRegistryHash       string   `json:"suite_registry_hash,omitempty"`
	SecretRegistryHash      string   `json:"secret_registry_hash,omitempty"`
	SchemeID                string   `json:"scheme_id,omitempty"`
	DigestPrefix            string   `json:"digest_prefix,omitempty"`
	SecretSuiteIDs          []string `json:"secret_suite_ids,omitempty"`
	MissingSecretSuites     []string `json:"missing_secret_suites,omitempty"`
	SecretFingerprintCount  int      `json:"secret_fingerprint_count"`
	ScannedFingerprintCount int      `json:"scanned_fingerprint_count"`
	ScannedFileCount        int      `json:"scanned_file_count"`
	Leaks                   []Leak   `json:"leaks,omitempty"`
	Errors                  []string `json:"errors,omitempty"`
}

// AuditConfig names the inputs of a secrecy audit.
type AuditConfig struct {
	RepoRoot           string
	SuiteRegistryPath  string
	SecretRegistryPath string
	ProtectedPaths     []string
	Keys               KeyProvider
	Concurrency        int

	// KeyEnv is the key name consulted when the registry's scheme declares
	// no key_id of its own. Empty falls back to DefaultKeyName.
	KeyEnv string
}

// RunAudit performs the end-to-end secrecy audit: load both registries,
// verify the cross-registry hash binding, scan the protected corpus, and
// intersect declared secret fingerprints against what the scan produced.
func RunAudit(cfg AuditConfig) Audit {
	suiteRegistry, suiteRegistryHash, err := LoadSuiteRegistry(cfg.SuiteRegistryPath)
	if err != nil {
		return failedAudit(err.Error())
	}

	secretSuites := SecretSuites(suiteRegistry)
	if len(secretSuites) == 0 {
		return Audit{
			Status:            StatusSkip,
			Message:           "No secret suites defined",
			SuiteRegistryHash: suiteRegistryHash,
		}
	}
	secretSuiteIDs := sortedSuiteIDs(secretSuites)

	registry, err := LoadHashRegistry(cfg.SecretRegistryPath)
	if err != nil {
		audit := failedAudit(err.Error())
		audit.SuiteRegistryHash = suiteRegistryHash
		audit.SecretSuiteIDs = secretSuiteIDs
		return audit
	}

	var errors []string

	// Every secret suite must appear in the hash registry, and the hash
	// registry must be bound to the exact suite registry it was built from.
	declared := make(map[string]bool)
	for _, id := range registry.SuiteIDs() {
		declared[id] = true
	}
	var missing []string
	for _, id := range secretSuiteIDs {
		if !declared[id] {
			missing = append(missing, id)
		}
	}
	claimedSuiteHash, _ := registry.Doc["suite_registry_hash"].(string)
	if !canonical.VerifyHash(claimedSuiteHash, suiteRegistryHash) {
		errors = append(errors, "suite_registry_hash mismatch")
	}

	secretFingerprints, fingerprintIndex := registry.SecretIndex()

	scheme := registry.Scheme.WithDefaultKey(cfg.KeyEnv)
	scan, err := ScanProtectedPaths(cfg.RepoRoot, scheme, cfg.Keys, cfg.ProtectedPaths, cfg.Concurrency)
	if err != nil {
		audit := failedAudit(err.Error())
		audit.SuiteRegistryHash = suiteRegistryHash
		audit.SecretRegistryHash = registry.Hash
		audit.SecretSuiteIDs = secretSuiteIDs
		return audit
	}
	errors = append(errors, scan.Errors...)

	var leaks []Leak
	for _, fp := range sortedIntersection(secretFingerprints, scan.Fingerprints) {
		leaks = append(leaks, Leak{
			Fingerprint: fp,
			SuiteIDs:    sortedSet(fingerprintIndex[fp]),
			Files:       scan.FilesFor(fp),
		})
	}

	status, message := StatusPass, "Secrecy fingerprint audit passed"
	if len(leaks) > 0 || len(errors) > 0 || len(missing) > 0 {
		status, message = StatusFail, "Secrecy fingerprint audit failed"
	}

	return Audit{
		Status:                  status,
		Message:                 message,
		SuiteRegistryHash:       suiteRegistryHash,
		SecretRegistryHash:      registry.Hash,
		SchemeID:                registry.Scheme.SchemeID,
		DigestPrefix:            registry.Scheme.DigestPrefix,
		SecretSuiteIDs:          secretSuiteIDs,
		MissingSecretSuites:     missing,
		SecretFingerprintCount:  len(secretFingerprints),
		ScannedFingerprintCount: len(scan.Fingerprints),
		ScannedFileCount:        len(scan.ScannedFiles),
		Leaks:                   leaks,
		Errors:                  errors,
	}
}

func failedAudit(message string) Audit {
	return Audit{
		Status:  StatusFail,
		Message: message,
		Errors:  []string{message},
	}
}

func sortedSuiteIDs(suites map[string]map[string]any) []string {
	ids := make([]string, 0, len(suites))
	for id := range suites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIntersection(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
