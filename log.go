package testpods

import (
	"log/slog"

	"github.com/giantswarm/testpods/internal/core"
)

// SetLogger replaces the package-level logger used by testpods.
// This allows applications to integrate testpods logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; testpods will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Thread safety: SetLogger is safe to call concurrently with other
// testpods operations. Both the custom logger and the cached default are
// stored as atomic pointers, so loads and stores are data-race-free. For a
// strict happens-before guarantee, call SetLogger before starting
// goroutines that use the library (e.g., in TestMain before m.Run).
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
