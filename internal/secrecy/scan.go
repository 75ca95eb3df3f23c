package secrecy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/caliperhq/gatecheck/internal/artifact"
	"github.com/caliperhq/gatecheck/internal/worker"
)

// DefaultProtectedPaths are the repository-relative directories scanned
// when the caller does not name its own.
var DefaultProtectedPaths = []string{
	"training/data",
	"training/corpora",
	"prompts",
	"prompt_libraries",
}

// listKeys is the fixed priority order for extracting test items from a
// structured document. The first present list-valued key wins; when
// several candidates are present this order is the documented policy, not
// an inference.
var listKeys = []string{"items", "examples", "prompts", "test_cases", "records"}

// supportedSuffixes are the file types the scanner knows how to
// fingerprint. Anything else is silently skipped.
var supportedSuffixes = map[string]bool{
	".json":  true,
	".yaml":  true,
	".yml":   true,
	".jsonl": true,
	".txt":   true,
	".md":    true,
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	lineSplit      = regexp.MustCompile(`\r\n|\r|\n`)
)

// ScanResult accumulates one corpus scan: the global fingerprint set, a
// reverse index from fingerprint to the files that produced it, the files
// visited, and any per-file soft errors. A non-empty error list means the
// audit cannot certify the corpus clean even if no collision was found.
type ScanResult struct {
	Fingerprints map[string]bool
	Sources      map[string]map[string]bool
	ScannedFiles []string
	Errors       []string
}

// FilesFor returns the sorted files that produced a fingerprint.
func (r *ScanResult) FilesFor(fingerprint string) []string {
	files := make([]string, 0, len(r.Sources[fingerprint]))
	for f := range r.Sources[fingerprint] {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ScanFile fingerprints a single file according to its suffix. Errors are
// returned, not raised through: a file the scanner cannot read or parse is
// a soft failure of the scan, not of the process.
func ScanFile(path string, scheme Scheme, keys KeyProvider) ([]string, error) {
	switch filepath.Ext(path) {
	case ".jsonl":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return scanJSONLines(string(raw), scheme, keys)
	case ".json", ".yaml", ".yml":
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			return nil, err
		}
		return scanStructured(doc, scheme, keys)
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return scanTextBlocks(string(raw), scheme, keys)
	}
	return nil, nil
}

// extractItems pulls the fingerprintable items out of a structured
// document: the first priority list key of an object, every element of a
// list document, or the document itself.
func extractItems(doc any) []any {
	switch v := doc.(type) {
	case nil:
		return nil
	case []any:
		return v
	case map[string]any:
		for _, key := range listKeys {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
		return []any{v}
	}
	return []any{doc}
}

// fingerprintsFromValue fingerprints one extracted item. Bare strings are
// treated as text blocks, everything else as structured items.
func fingerprintsFromValue(v any, scheme Scheme, keys KeyProvider) ([]string, error) {
	if text, ok := v.(string); ok {
		fp, ok, err := FingerprintTextBlock(text, scheme, keys)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []string{fp}, nil
	}
	fp, err := FingerprintItem(v, scheme, keys)
	if err != nil {
		return nil, err
	}
	return []string{fp}, nil
}

func scanStructured(doc any, scheme Scheme, keys KeyProvider) ([]string, error) {
	var fingerprints []string
	for _, item := range extractItems(doc) {
		fps, err := fingerprintsFromValue(item, scheme, keys)
		if err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fps...)
	}
	return fingerprints, nil
}

// scanJSONLines fingerprints one JSON value per non-blank line. A line
// that fails to parse is fingerprinted as raw text instead of aborting
// the scan.
func scanJSONLines(text string, scheme Scheme, keys KeyProvider) ([]string, error) {
	var fingerprints []string
	for _, line := range splitLines(text) {
		if isBlank(line) {
			continue
		}
		value, err := artifact.DecodeJSON([]byte(line))
		if err != nil {
			value = line
		}
		fps, err := fingerprintsFromValue(value, scheme, keys)
		if err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fps...)
	}
	return fingerprints, nil
}

// scanTextBlocks fingerprints every paragraph plus the whole normalized
// document, covering both partial-quote and full-document leakage.
func scanTextBlocks(text string, scheme Scheme, keys KeyProvider) ([]string, error) {
	normalized := normalizeNewlines(text)
	var fingerprints []string
	for _, paragraph := range paragraphSplit.Split(normalized, -1) {
		fp, ok, err := FingerprintTextBlock(paragraph, scheme, keys)
		if err != nil {
			return nil, err
		}
		if ok {
			fingerprints = append(fingerprints, fp)
		}
	}
	whole, ok, err := FingerprintTextBlock(normalized, scheme, keys)
	if err != nil {
		return nil, err
	}
	if ok {
		fingerprints = append(fingerprints, whole)
	}
	return fingerprints, nil
}

// ScanProtectedPaths walks the given repository-relative directories and
// fingerprints every supported file, fanning the per-file work out across
// the pool. Missing directories are skipped. Per-file failures are
// recorded as soft errors and the scan continues.
func ScanProtectedPaths(root string, scheme Scheme, keys KeyProvider, protectedPaths []string, concurrency int) (*ScanResult, error) {
	paths := protectedPaths
	if paths == nil {
		paths = DefaultProtectedPaths
	}

	var files []string
	for _, rel := range paths {
		base := filepath.Join(root, rel)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !supportedSuffixes[filepath.Ext(path)] {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", base, err)
		}
	}
	sort.Strings(files)

	result := &ScanResult{
		Fingerprints: make(map[string]bool),
		Sources:      make(map[string]map[string]bool),
	}

	pool := worker.NewPool[[]string](concurrency)
	outcomes := pool.Process(files, func(path string) ([]string, error) {
		return ScanFile(path, scheme, keys)
	})

	for i, outcome := range outcomes {
		rel := relativeTo(root, files[i])
		result.ScannedFiles = append(result.ScannedFiles, rel)
		if outcome.Err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, outcome.Err))
			continue
		}
		for _, fp := range outcome.Value {
			result.Fingerprints[fp] = true
			if result.Sources[fp] == nil {
				result.Sources[fp] = make(map[string]bool)
			}
			result.Sources[fp][rel] = true
		}
	}
	return result, nil
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func splitLines(text string) []string {
	return lineSplit.Split(text, -1)
}

func isBlank(line string) bool {
	for _, r := range line {
		if r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}
