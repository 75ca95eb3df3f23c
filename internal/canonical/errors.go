package canonical

import "errors"

// Sentinel errors for the canonical package. Using sentinels allows callers
// to match with errors.Is for reliable error handling.
var (
	// ErrNotSerializable is returned when a value has no canonical form.
	ErrNotSerializable = errors.New("value is not canonically serializable")
)
