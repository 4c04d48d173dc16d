// Package version holds the CLI version string. Release builds set it with
// -ldflags "-X commitmate/cli/internal/version.Version=v1.0.0"; Commit is the
// short hash stamped into dev builds.
package version

// Version is the commitmate CLI version.
var Version = "dev"

// Commit is the short git commit hash of a dev build.
var Commit = ""

// String returns the version for --version output and history records.
// Dev builds with a known commit render as "dev (abc1234)".
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// UserAgent is the User-Agent header sent to remote model endpoints, for
// example "commitmate/v1.0.0" or "commitmate/dev (abc1234)".
func UserAgent() string {
	return "commitmate/" + String()
}
