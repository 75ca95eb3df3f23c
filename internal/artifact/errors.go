package artifact

import "errors"

// Sentinel errors for the artifact package. Using sentinels allows callers
// to match with errors.Is for reliable error handling.
var (
	// ErrUnsupportedSuffix is returned when a file is not a structured artifact.
	ErrUnsupportedSuffix = errors.New("unsupported artifact suffix")
)
