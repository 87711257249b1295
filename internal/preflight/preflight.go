// Package preflight validates the environment before a sync run starts:
// a usable git binary, a writable data directory, and enough disk space
// for checkouts and vector files.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Required bool        `json:"required"`
}

// IsCritical returns true for a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation for a data directory.
type Checker struct {
	dataDir string
}

// New creates a checker for the given data directory.
func New(dataDir string) *Checker {
	return &Checker{dataDir: dataDir}
}

// RunAll runs every check.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckGit(ctx),
		c.CheckDataDir(),
		c.CheckDiskSpace(),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// CheckGit verifies a git binary is on PATH and responds.
func (c *Checker) CheckGit(ctx context.Context) CheckResult {
	result := CheckResult{Name: "git", Required: true}

	path, err := exec.LookPath("git")
	if err != nil {
		result.Status = StatusFail
		result.Message = "git not found on PATH"
		return result
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("git --version failed: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = strings.TrimSpace(string(out))
	return result
}

// CheckDataDir verifies the data directory exists (creating it if
// needed) and is writable.
func (c *Checker) CheckDataDir() CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}

	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.dataDir, err)
		return result
	}

	probe := filepath.Join(c.dataDir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", c.dataDir, err)
		return result
	}
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = c.dataDir
	return result
}
