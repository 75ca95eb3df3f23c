package secrecy

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/caliperhq/gatecheck/internal/canonical"
)

// auditFixture lays out a repository with one secret suite whose single
// test case is {"prompt": "X"}, a hash registry bound to the suite
// registry, and a protected corpus containing corpusBody.
func auditFixture(t *testing.T, corpusBody string) AuditConfig {
	t.Helper()
	root := t.TempDir()

	suiteRegistryPath := filepath.Join(root, "suite_registry.json")
	writeFile(t, suiteRegistryPath, `{
		"registry_version": "1",
		"suites": [
			{"suite_id": "safety_eval_v1", "secrecy_level": "secret"},
			{"suite_id": "public_eval_v1", "secrecy_level": "public"}
		]
	}`)
	suiteRegistryHash, err := canonical.DataFileHash(suiteRegistryPath)
	if err != nil {
		t.Fatal(err)
	}

	secretFP := mustFingerprint(t, map[string]any{"prompt": "X"})
	secretRegistryPath := filepath.Join(root, "secret_registry.json")
	writeFile(t, secretRegistryPath, fmt.Sprintf(`{
		"registry_version": "1",
		"hashing_scheme": {
			"scheme_id": "sha256_canonical_json_v1",
			"normalization": "canonical_json_nfc",
			"digest_prefix": "sha256:"
		},
		"generated_at": "2026-08-01T00:00:00Z",
		"suite_registry_hash": %q,
		"suites": [
			{"suite_id": "safety_eval_v1", "test_case_fingerprints": [%q]}
		]
	}`, suiteRegistryHash, secretFP))

	if corpusBody != "" {
		writeFile(t, filepath.Join(root, "prompts", "corpus.json"), corpusBody)
	}

	return AuditConfig{
		RepoRoot:           root,
		SuiteRegistryPath:  suiteRegistryPath,
		SecretRegistryPath: secretRegistryPath,
		Concurrency:        2,
	}
}

func TestRunAuditDetectsLeak(t *testing.T) {
	cfg := auditFixture(t, `{"items":[{"prompt":"X"}]}`)
	audit := RunAudit(cfg)

	if audit.Status != StatusFail {
		t.Fatalf("status = %s, want fail", audit.Status)
	}
	if len(audit.Leaks) != 1 {
		t.Fatalf("leaks = %+v", audit.Leaks)
	}
	leak := audit.Leaks[0]
	if len(leak.Files) != 1 || leak.Files[0] != "prompts/corpus.json" {
		t.Errorf("leak files = %v", leak.Files)
	}
	if len(leak.SuiteIDs) != 1 || leak.SuiteIDs[0] != "safety_eval_v1" {
		t.Errorf("leak suites = %v", leak.SuiteIDs)
	}
	if audit.SecretFingerprintCount != 1 || audit.ScannedFileCount != 1 {
		t.Errorf("counts = %+v", audit)
	}
}

func TestRunAuditClean(t *testing.T) {
	cfg := auditFixture(t, `{"items":[{"prompt":"Y"}]}`)
	audit := RunAudit(cfg)

	if audit.Status != StatusPass {
		t.Fatalf("status = %s, errors = %v, leaks = %+v", audit.Status, audit.Errors, audit.Leaks)
	}
	if len(audit.SecretSuiteIDs) != 1 || audit.SecretSuiteIDs[0] != "safety_eval_v1" {
		t.Errorf("secret suites = %v", audit.SecretSuiteIDs)
	}
	if audit.SuiteRegistryHash == "" || audit.SecretRegistryHash == "" {
		t.Error("audit should carry both registry hashes")
	}
}

func TestRunAuditHMACKeyEnv(t *testing.T) {
	root := t.TempDir()
	keys := StaticKeyProvider{"CUSTOM_HMAC_KEY": []byte("key material")}
	scheme := Scheme{
		SchemeID:        "hmac_sha256_canonical_json_v1",
		NormalizationID: "canonical_json_nfc",
		DigestPrefix:    "hmacsha256:",
	}.WithDefaultKey("CUSTOM_HMAC_KEY")

	suiteRegistryPath := filepath.Join(root, "suite_registry.json")
	writeFile(t, suiteRegistryPath, `{
		"registry_version": "1",
		"suites": [{"suite_id": "safety_eval_v1", "secrecy_level": "secret"}]
	}`)
	suiteRegistryHash, err := canonical.DataFileHash(suiteRegistryPath)
	if err != nil {
		t.Fatal(err)
	}

	secretFP, err := FingerprintItem(map[string]any{"prompt": "X"}, scheme, keys)
	if err != nil {
		t.Fatal(err)
	}
	secretRegistryPath := filepath.Join(root, "secret_registry.json")
	writeFile(t, secretRegistryPath, fmt.Sprintf(`{
		"registry_version": "1",
		"hashing_scheme": {
			"scheme_id": "hmac_sha256_canonical_json_v1",
			"normalization": "canonical_json_nfc",
			"digest_prefix": "hmacsha256:"
		},
		"generated_at": "2026-08-01T00:00:00Z",
		"suite_registry_hash": %q,
		"suites": [
			{"suite_id": "safety_eval_v1", "test_case_fingerprints": [%q]}
		]
	}`, suiteRegistryHash, secretFP))
	writeFile(t, filepath.Join(root, "prompts", "corpus.json"), `{"items":[{"prompt":"X"}]}`)

	cfg := AuditConfig{
		RepoRoot:           root,
		SuiteRegistryPath:  suiteRegistryPath,
		SecretRegistryPath: secretRegistryPath,
		Keys:               keys,
		KeyEnv:             "CUSTOM_HMAC_KEY",
	}
	audit := RunAudit(cfg)
	if audit.Status != StatusFail || len(audit.Leaks) != 1 {
		t.Fatalf("audit = %+v, want the keyed leak detected", audit)
	}

	// Without the configured fallback the scan cannot resolve a key and
	// every file surfaces as a soft error.
	cfg.KeyEnv = ""
	audit = RunAudit(cfg)
	if audit.Status != StatusFail {
		t.Fatalf("status = %s, want fail", audit.Status)
	}
	if len(audit.Leaks) != 0 || len(audit.Errors) == 0 {
		t.Errorf("audit = %+v, want key-resolution soft errors and no leaks", audit)
	}
}

func TestRunAuditRegistryBinding(t *testing.T) {
	cfg := auditFixture(t, `{"items":[{"prompt":"Y"}]}`)

	// Regenerating the suite registry without rebuilding the hash registry
	// breaks the binding.
	writeFile(t, cfg.SuiteRegistryPath, `{
		"registry_version": "2",
		"suites": [
			{"suite_id": "safety_eval_v1", "secrecy_level": "secret"}
		]
	}`)

	audit := RunAudit(cfg)
	if audit.Status != StatusFail {
		t.Fatalf("status = %s, want fail", audit.Status)
	}
	found := false
	for _, e := range audit.Errors {
		if e == "suite_registry_hash mismatch" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want binding mismatch", audit.Errors)
	}
}

func TestRunAuditMissingSecretSuite(t *testing.T) {
	cfg := auditFixture(t, "")

	suiteRegistryPath := cfg.SuiteRegistryPath
	writeFile(t, suiteRegistryPath, `{
		"registry_version": "1",
		"suites": [
			{"suite_id": "safety_eval_v1", "secrecy_level": "secret"},
			{"suite_id": "redteam_v2", "secrecy_level": "secret"}
		]
	}`)
	audit := RunAudit(cfg)

	if audit.Status != StatusFail {
		t.Fatalf("status = %s, want fail", audit.Status)
	}
	if len(audit.MissingSecretSuites) != 1 || audit.MissingSecretSuites[0] != "redteam_v2" {
		t.Errorf("missing suites = %v", audit.MissingSecretSuites)
	}
}

func TestRunAuditNoSecretSuites(t *testing.T) {
	root := t.TempDir()
	suiteRegistryPath := filepath.Join(root, "suite_registry.json")
	writeFile(t, suiteRegistryPath, `{
		"registry_version": "1",
		"suites": [{"suite_id": "public_eval_v1", "secrecy_level": "public"}]
	}`)

	audit := RunAudit(AuditConfig{
		RepoRoot:          root,
		SuiteRegistryPath: suiteRegistryPath,
	})
	if audit.Status != StatusSkip {
		t.Errorf("status = %s, want skip", audit.Status)
	}
}

func TestRunAuditMissingRegistries(t *testing.T) {
	root := t.TempDir()
	audit := RunAudit(AuditConfig{
		RepoRoot:          root,
		SuiteRegistryPath: filepath.Join(root, "absent.json"),
	})
	if audit.Status != StatusFail {
		t.Errorf("status = %s, want fail", audit.Status)
	}

	suiteRegistryPath := filepath.Join(root, "suite_registry.json")
	writeFile(t, suiteRegistryPath, `{
		"registry_version": "1",
		"suites": [{"suite_id": "s", "secrecy_level": "secret"}]
	}`)
	audit = RunAudit(AuditConfig{
		RepoRoot:           root,
		SuiteRegistryPath:  suiteRegistryPath,
		SecretRegistryPath: filepath.Join(root, "absent.json"),
	})
	if audit.Status != StatusFail {
		t.Errorf("status = %s, want fail", audit.Status)
	}
}
