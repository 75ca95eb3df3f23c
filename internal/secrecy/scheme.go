// Package secrecy detects leakage of secret evaluation-suite content into
// protected corpora without ever handling the secret content in the clear.
// Content is reduced to opaque fingerprints, optionally keyed with
// HMAC-SHA256, and leak detection is a set intersection between declared
// and scanned fingerprints.
package secrecy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/caliperhq/gatecheck/internal/canonical"
)

// DefaultKeyName is the key looked up when a scheme declares HMAC but no
// key_id.
const DefaultKeyName = "GATECHECK_SECRECY_HMAC_KEY"

// Scheme declares how fingerprints are computed: digest family,
// normalization applied before digesting, the prefix on emitted
// fingerprints, and the key reference for keyed schemes.
type Scheme struct {
	SchemeID        string
	NormalizationID string
	DigestPrefix    string
	KeyID           string
}

// SchemeFromDocument builds a Scheme from a decoded hashing_scheme object.
func SchemeFromDocument(doc any) (Scheme, error) {
	payload, ok := doc.(map[string]any)
	if !ok {
		return Scheme{}, fmt.Errorf("%w: hashing_scheme must be an object", ErrBadScheme)
	}
	var missing []string
	for _, field := range []string{"scheme_id", "normalization", "digest_prefix"} {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Scheme{}, fmt.Errorf("%w: hashing_scheme missing fields %v", ErrBadScheme, missing)
	}
	keyID, _ := payload["key_id"].(string)
	return Scheme{
		SchemeID:        fmt.Sprint(payload["scheme_id"]),
		NormalizationID: fmt.Sprint(payload["normalization"]),
		DigestPrefix:    fmt.Sprint(payload["digest_prefix"]),
		KeyID:           keyID,
	}, nil
}

// UsesHMAC reports whether the scheme requires a keyed digest.
func (s Scheme) UsesHMAC() bool {
	return strings.HasPrefix(s.SchemeID, "hmac") || strings.HasPrefix(s.DigestPrefix, "hmacsha256:")
}

// KeyName returns the lookup name for the scheme's HMAC key. A key_id of
// the form "provider:name" names the key after the colon; otherwise the
// whole key_id is the name, falling back to DefaultKeyName.
func (s Scheme) KeyName() string {
	keyID := s.KeyID
	if keyID == "" {
		keyID = DefaultKeyName
	}
	if idx := strings.Index(keyID, ":"); idx >= 0 {
		return keyID[idx+1:]
	}
	return keyID
}

// WithDefaultKey returns the scheme with name as its key reference when
// the scheme itself declares no key_id. This is how the configured
// fallback env var reaches key resolution without the scheme document
// having to name it.
func (s Scheme) WithDefaultKey(name string) Scheme {
	if s.KeyID == "" && name != "" {
		s.KeyID = name
	}
	return s
}

// KeyProvider resolves HMAC keys by name. The engine never reads process
// state directly; callers inject the provider, which keeps the digest
// layer testable and free of hidden globals.
type KeyProvider interface {
	// Key returns the key material for name, or false if absent.
	Key(name string) ([]byte, bool)
}

// EnvKeyProvider resolves keys from environment variables.
type EnvKeyProvider struct{}

// Key looks the name up in the process environment.
func (EnvKeyProvider) Key(name string) ([]byte, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, false
	}
	return []byte(value), true
}

// StaticKeyProvider resolves keys from a fixed map, for tests and callers
// that manage key material themselves.
type StaticKeyProvider map[string][]byte

// Key looks the name up in the map.
func (p StaticKeyProvider) Key(name string) ([]byte, bool) {
	key, ok := p[name]
	return key, ok
}

// digest computes the scheme's fingerprint of a canonical payload. A
// missing key on an HMAC scheme is a hard failure: silently falling back
// to an unauthenticated digest would void the confidentiality guarantee
// the keyed scheme exists to provide.
func digest(payload []byte, scheme Scheme, keys KeyProvider) (string, error) {
	if !scheme.UsesHMAC() {
		sum := sha256.Sum256(payload)
		return scheme.DigestPrefix + hex.EncodeToString(sum[:]), nil
	}
	if keys == nil {
		return "", fmt.Errorf("%w: no key provider", ErrMissingHMACKey)
	}
	key, ok := keys.Key(scheme.KeyName())
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingHMACKey, scheme.KeyName())
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return scheme.DigestPrefix + hex.EncodeToString(mac.Sum(nil)), nil
}

// FingerprintItem fingerprints a structured value under the scheme. The
// unicode-preserving canonical form is used, so the same logical content
// fingerprints identically regardless of key order or source encoding.
func FingerprintItem(v any, scheme Scheme, keys KeyProvider) (string, error) {
	payload, err := canonical.MarshalFingerprint(v)
	if err != nil {
		return "", err
	}
	return digest(payload, scheme, keys)
}

// FingerprintTextBlock fingerprints a block of prose. Line endings are
// normalized to \n and surrounding whitespace stripped; a block that
// normalizes to nothing yields no fingerprint (ok=false) rather than an
// error or a digest of emptiness.
func FingerprintTextBlock(text string, scheme Scheme, keys KeyProvider) (string, bool, error) {
	normalized := strings.TrimSpace(normalizeNewlines(text))
	if normalized == "" {
		return "", false, nil
	}
	fp, err := digest([]byte(normalized), scheme, keys)
	if err != nil {
		return "", false, err
	}
	return fp, true, nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
