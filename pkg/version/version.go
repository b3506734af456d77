// Package version carries build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata. Overridden at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const develVersion = "(devel)"

// Resolved returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Resolved() string {
	if Version != "dev" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == develVersion {
		return Version
	}

	return info.Main.Version
}

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("blockaudit %s (commit: %s, built: %s)", Resolved(), Commit, Date)
}
