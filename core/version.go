package core

import "fmt"

// Build information, injected with ldflags:
//
//	go build -ldflags "-X go_styletransfer/core.Version=$(git describe --tags --always) \
//	    -X go_styletransfer/core.GitCommit=$(git rev-parse --short HEAD) \
//	    -X go_styletransfer/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo formats the build information for --version and startup logs,
// for example "v1.2.0 (built 2026-03-01T10:30:00Z, commit abc1234, backend ncnn)".
func VersionInfo(backend string) string {
	if backend == "" {
		return fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}
	return fmt.Sprintf("%s (built %s, commit %s, backend %s)", Version, BuildTime, GitCommit, backend)
}
