// Package version exposes build metadata for the ragsync binary.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X .../pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GoVersion records the toolchain the binary was built with.
var GoVersion = runtime.Version()

// BuildInfo is the JSON shape of `ragsync version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the full build metadata.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns the one-line human-readable form.
func String() string {
	return fmt.Sprintf("ragsync %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns the bare version number.
func Short() string {
	return Version
}
