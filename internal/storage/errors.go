package storage

import "errors"

// Sentinel errors for the storage package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrUnknownBackend is returned by Open for a backend name it does not know.
	ErrUnknownBackend = errors.New("unknown audit backend")

	// ErrPathRequired is returned when a file-backed store is opened without a path.
	ErrPathRequired = errors.New("audit path is required")
)
