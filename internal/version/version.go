// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short renders the build info the way cipherdex reports it at startup,
// e.g. "1.4.0 (3f9c2a1)".
func Short() string {
	return Version + " (" + Commit + ")"
}
