// Package version provides build-time metadata for the cpuinfo command.
//
// All variables have sensible defaults and can be overridden at build time
// using -ldflags:
//
//	go build -ldflags "\
//	  -X 'github.com/slashdevops/cpuinfo/internal/version.Version=1.0.0' \
//	  -X 'github.com/slashdevops/cpuinfo/internal/version.GitCommit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/slashdevops/cpuinfo/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)'" \
//	  ./cmd/cpuinfo
package version

import "runtime"

var (
	// Version is the release version, "0.0.0" for development builds
	Version = "0.0.0"

	// BuildDate is the UTC build timestamp
	BuildDate = "1970-01-01T00:00:00Z"

	// GitCommit is the commit hash the binary was built from
	GitCommit = ""

	// GitBranch is the branch the binary was built from
	GitBranch = ""

	// BuildUser is the user or CI job that built the binary
	BuildUser = ""

	// GoVersion is the Go toolchain used for the build
	GoVersion = runtime.Version()

	// GoVersionArch is the target architecture
	GoVersionArch = runtime.GOARCH

	// GoVersionOS is the target operating system
	GoVersionOS = runtime.GOOS
)
