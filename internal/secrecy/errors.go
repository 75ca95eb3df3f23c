package secrecy

import "errors"

// Sentinel errors for the secrecy package. A fingerprint audit that cannot
// run fails closed; these are matched with errors.Is by callers deciding
// certification outcomes.
var (
	// ErrBadScheme is returned for a malformed hashing_scheme declaration.
	ErrBadScheme = errors.New("invalid hashing scheme")

	// ErrMissingHMACKey is returned when a keyed scheme's key cannot be
	// resolved. Never downgraded to an unauthenticated digest.
	ErrMissingHMACKey = errors.New("HMAC key missing for secrecy fingerprinting")

	// ErrBadRegistry is returned for a malformed or incomplete hash registry.
	ErrBadRegistry = errors.New("invalid secret hash registry")
)
