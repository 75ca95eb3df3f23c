package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caliperhq/gatecheck/internal/artifact"
)

// HashPrefix is the algorithm prefix on every content hash this package emits.
const HashPrefix = "sha256:"

// fileChunkSize is the read size for streaming raw files through SHA-256.
const fileChunkSize = 8192

// HashBytes computes the prefixed SHA-256 hash of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// HashString computes the prefixed SHA-256 hash of a UTF-8 string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ContentHash computes the prefixed SHA-256 hash of a value's ASCII
// canonical form. Two values with the same structure always hash the same
// regardless of key order or source formatting.
func ContentHash(v any) (string, error) {
	payload, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(payload), nil
}

// DataFileHash parses a structured artifact and hashes its canonical form,
// so re-serialization or whitespace changes never alter identity.
func DataFileHash(path string) (string, error) {
	v, err := artifact.LoadDataFile(path)
	if err != nil {
		return "", err
	}
	return ContentHash(v)
}

// FileHash hashes a file. Structured artifacts are parsed and hashed
// canonically; everything else is streamed raw through SHA-256 in fixed
// chunks.
func FileHash(path string) (string, error) {
	if artifact.IsDataFile(path) {
		return DataFileHash(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only, errors non-critical
	}()

	h := sha256.New()
	buf := make([]byte, fileChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}
	return HashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// NormalizeHash strips an optional "<algo>:" prefix, leaving the bare
// digest for comparison.
func NormalizeHash(h string) string {
	if idx := strings.IndexByte(h, ':'); idx >= 0 {
		return h[idx+1:]
	}
	return h
}

// VerifyHash reports whether two hash strings refer to the same digest
// after prefix normalization. An absent value on either side is never
// vacuously verified.
func VerifyHash(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return NormalizeHash(expected) == NormalizeHash(actual)
}
