package lattice

import (
	"fmt"

	"github.com/caliperhq/gatecheck/internal/artifact"
	"github.com/caliperhq/gatecheck/internal/canonical"
)

// IndexEntry records where a lattice version lives and its content hash.
type IndexEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// BuildIndex maps every lattice version found under dir to its file and
// bare content hash. Duplicate or missing versions are errors: version
// identity is what provenance chains reference.
func BuildIndex(dir string) (map[string]IndexEntry, error) {
	files, err := artifact.IterDataFiles(dir)
	if err != nil {
		return nil, err
	}
	index := make(map[string]IndexEntry)
	for _, path := range files {
		doc, err := artifact.LoadDataFile(path)
		if err != nil {
			return nil, err
		}
		root, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		version, _ := root["version"].(string)
		if version == "" {
			return nil, fmt.Errorf("%w: lattice file missing version: %s", ErrMalformed, path)
		}
		if _, dup := index[version]; dup {
			return nil, fmt.Errorf("%w: duplicate lattice version %q in %s", ErrMalformed, version, path)
		}
		hash, err := canonical.DataFileHash(path)
		if err != nil {
			return nil, err
		}
		index[version] = IndexEntry{
			Path: path,
			Hash: canonical.NormalizeHash(hash),
		}
	}
	return index, nil
}
