package secrecy

import (
	"fmt"
	"os"
	"sort"

	"github.com/caliperhq/gatecheck/internal/artifact"
	"github.com/caliperhq/gatecheck/internal/canonical"
)

// requiredRegistryFields must all be present in a secret hash registry.
var requiredRegistryFields = []string{
	"registry_version",
	"hashing_scheme",
	"generated_at",
	"suite_registry_hash",
	"suites",
}

// HashRegistry is a loaded secret hash registry: the raw document, its
// declared hashing scheme, and the registry file's own content hash.
type HashRegistry struct {
	Doc    map[string]any
	Scheme Scheme
	Hash   string
}

// LoadHashRegistry loads and validates a secret hash registry file.
func LoadHashRegistry(path string) (*HashRegistry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: not found: %s", ErrBadRegistry, path)
	}
	raw, err := artifact.LoadDataFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRegistry, err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: must be an object", ErrBadRegistry)
	}
	for _, field := range requiredRegistryFields {
		if _, ok := doc[field]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrBadRegistry, field)
		}
	}
	scheme, err := SchemeFromDocument(doc["hashing_scheme"])
	if err != nil {
		return nil, err
	}
	hash, err := canonical.DataFileHash(path)
	if err != nil {
		return nil, err
	}
	return &HashRegistry{Doc: doc, Scheme: scheme, Hash: hash}, nil
}

// SuiteIDs returns the suite ids declared in the registry.
func (r *HashRegistry) SuiteIDs() []string {
	var ids []string
	for _, suite := range registrySuites(r.Doc) {
		if id, _ := suite["suite_id"].(string); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SecretIndex builds the declared-fingerprint set and the reverse index
// fingerprint → suite ids from the registry's suites.
func (r *HashRegistry) SecretIndex() (map[string]bool, map[string]map[string]bool) {
	fingerprints := make(map[string]bool)
	index := make(map[string]map[string]bool)
	for _, suite := range registrySuites(r.Doc) {
		suiteID, _ := suite["suite_id"].(string)
		list, _ := suite["test_case_fingerprints"].([]any)
		for _, rawFP := range list {
			fp, ok := rawFP.(string)
			if !ok || fp == "" {
				continue
			}
			fingerprints[fp] = true
			if suiteID != "" {
				if index[fp] == nil {
					index[fp] = make(map[string]bool)
				}
				index[fp][suiteID] = true
			}
		}
	}
	return fingerprints, index
}

func registrySuites(doc map[string]any) []map[string]any {
	list, _ := doc["suites"].([]any)
	suites := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if suite, ok := raw.(map[string]any); ok {
			suites = append(suites, suite)
		}
	}
	return suites
}

// LoadSuiteRegistry loads the public suite registry and its content hash.
func LoadSuiteRegistry(path string) (map[string]any, string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%w: suite registry not found: %s", ErrBadRegistry, path)
	}
	raw, err := artifact.LoadDataFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadRegistry, err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: suite registry must be an object", ErrBadRegistry)
	}
	hash, err := canonical.DataFileHash(path)
	if err != nil {
		return nil, "", err
	}
	return doc, hash, nil
}

// SecretSuites filters a suite registry down to the suites declared
// secret.
func SecretSuites(registry map[string]any) map[string]map[string]any {
	secret := make(map[string]map[string]any)
	for _, suite := range registrySuites(registry) {
		if level, _ := suite["secrecy_level"].(string); level != "secret" {
			continue
		}
		if id, _ := suite["suite_id"].(string); id != "" {
			secret[id] = suite
		}
	}
	return secret
}
