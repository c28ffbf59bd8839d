package version

import "fmt"

// These variables are set via ldflags at build time.
// Example: go build -ldflags "-X investsql/internal/version.Version=1.0.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns the one-line build description
func String() string {
	return fmt.Sprintf("investsql %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
