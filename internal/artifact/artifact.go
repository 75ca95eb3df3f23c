// Package artifact loads structured governance artifacts from disk.
// Artifacts are JSON or YAML documents; the suffix decides the decoder.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DataSuffixes are the file suffixes recognized as structured artifacts.
var DataSuffixes = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// IsDataFile reports whether path has a structured-artifact suffix.
func IsDataFile(path string) bool {
	return DataSuffixes[filepath.Ext(path)]
}

// LoadDataFile decodes a JSON or YAML file into a generic value.
// JSON is decoded with UseNumber so numeric literals survive re-encoding.
func LoadDataFile(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".json":
		return DecodeJSON(raw)
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSuffix, path)
	}
}

// DecodeJSON decodes raw JSON into a generic value, preserving numeric
// literals as json.Number.
func DecodeJSON(raw []byte) (any, error) {
	var v any
	dec := newNumberDecoder(raw)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return v, nil
}

// IterDataFiles returns every structured artifact under base, sorted by
// path. A missing base directory yields an empty slice, not an error.
func IterDataFiles(base string) ([]string, error) {
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsDataFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}
	sort.Strings(files)
	return files, nil
}

func newNumberDecoder(raw []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec
}
