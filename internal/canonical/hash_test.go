package canonical

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContentHashKeyOrderIndependent(t *testing.T) {
	h1, err := ContentHash(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := ContentHash(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("missing prefix: %s", h1)
	}
}

func TestDataFileHashIgnoresFormatting(t *testing.T) {
	dir := t.TempDir()
	compact := filepath.Join(dir, "compact.json")
	pretty := filepath.Join(dir, "pretty.json")
	if err := os.WriteFile(compact, []byte(`{"a":1,"b":[2,3]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pretty, []byte("{\n  \"b\": [2, 3],\n  \"a\": 1\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := DataFileHash(compact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := DataFileHash(pretty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("structured hashes differ: %s vs %s", h1, h2)
	}
}

func TestDataFileHashCrossFormat(t *testing.T) {
	dir := t.TempDir()
	asJSON := filepath.Join(dir, "doc.json")
	asYAML := filepath.Join(dir, "doc.yaml")
	if err := os.WriteFile(asJSON, []byte(`{"name":"x","count":3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(asYAML, []byte("name: x\ncount: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := DataFileHash(asJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := DataFileHash(asYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("JSON and YAML renderings of the same document hash differently: %s vs %s", h1, h2)
	}
}

func TestFileHashRawIsContentSensitive(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("payload "), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := FileHash(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := FileHash(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 == h2 {
		t.Error("raw hashes should differ for different bytes")
	}
	if h1 != HashBytes([]byte("payload")) {
		t.Errorf("streamed hash disagrees with HashBytes: %s", h1)
	}
}

func TestNormalizeHash(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"sha256:abc123", "abc123"},
		{"hmacsha256:abc123", "abc123"},
		{"abc123", "abc123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeHash(tc.in); got != tc.want {
			t.Errorf("NormalizeHash(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVerifyHash(t *testing.T) {
	if !VerifyHash("sha256:abc", "abc") {
		t.Error("prefixed vs bare should verify")
	}
	if !VerifyHash("abc", "sha256:abc") {
		t.Error("bare vs prefixed should verify")
	}
	if VerifyHash("sha256:abc", "sha256:abd") {
		t.Error("different digests should not verify")
	}
	if VerifyHash("", "abc") || VerifyHash("abc", "") || VerifyHash("", "") {
		t.Error("absent values must never verify")
	}
}
