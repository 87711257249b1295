package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	syncerr "github.com/qiao-925/ragsync/internal/errors"
	"github.com/qiao-925/ragsync/internal/repo"
)

// GitConnector implements Connector by shelling out to git.
// Checkouts live under WorkDir, one directory per repository@branch, and
// are reused across runs (clone once, fetch afterwards).
type GitConnector struct {
	// BaseURL is the git host prefix, e.g. "https://github.com".
	BaseURL string

	// Token, when set, authenticates HTTPS clone and fetch.
	Token string

	// WorkDir is the root directory for checkouts.
	WorkDir string

	// Depth limits history on first clone (default 1).
	Depth int

	// Timeout bounds each git invocation (default 5m).
	Timeout time.Duration
}

// NewGitConnector creates a git connector with defaults applied.
func NewGitConnector(baseURL, token, workDir string) *GitConnector {
	if baseURL == "" {
		baseURL = "https://github.com"
	}
	return &GitConnector{
		BaseURL: baseURL,
		Token:   token,
		WorkDir: workDir,
		Depth:   1,
		Timeout: 5 * time.Minute,
	}
}

// RevisionMarker resolves the branch head via ls-remote, without touching
// or creating a local checkout.
func (g *GitConnector) RevisionMarker(ctx context.Context, ref repo.Ref) (string, error) {
	out, err := g.run(ctx, "", "ls-remote", g.remoteURL(ref), "refs/heads/"+ref.Branch)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", syncerr.New(syncerr.ErrCodeConnectorNotFound,
			fmt.Sprintf("branch %s not found in %s/%s", ref.Branch, ref.Owner, ref.Name), nil)
	}
	return fields[0], nil
}

// CloneOrUpdate clones the branch on first use and fetch+resets an
// existing checkout afterwards, returning the local path and HEAD.
func (g *GitConnector) CloneOrUpdate(ctx context.Context, ref repo.Ref) (string, string, error) {
	dir := g.checkoutDir(ref)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		slog.Debug("updating existing checkout", slog.String("repo", ref.Key()), slog.String("dir", dir))
		if _, err := g.run(ctx, dir, "fetch", "--depth", fmt.Sprint(g.depth()), "origin", ref.Branch); err != nil {
			return "", "", err
		}
		if _, err := g.run(ctx, dir, "reset", "--hard", "FETCH_HEAD"); err != nil {
			return "", "", err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return "", "", syncerr.ConnectorError("create checkout directory", err)
		}
		slog.Debug("cloning repository", slog.String("repo", ref.Key()), slog.String("dir", dir))
		_, err := g.run(ctx, "", "clone",
			"--depth", fmt.Sprint(g.depth()),
			"--branch", ref.Branch,
			"--single-branch",
			g.remoteURL(ref), dir)
		if err != nil {
			return "", "", err
		}
	}

	head, err := g.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", "", err
	}
	return dir, strings.TrimSpace(head), nil
}

func (g *GitConnector) depth() int {
	if g.Depth <= 0 {
		return 1
	}
	return g.Depth
}

// remoteURL builds the clone URL, embedding the token when present.
func (g *GitConnector) remoteURL(ref repo.Ref) string {
	u, err := url.Parse(g.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("%s/%s/%s.git", strings.TrimSuffix(g.BaseURL, "/"), ref.Owner, ref.Name)
	}
	if g.Token != "" {
		u.User = url.UserPassword("oauth2", g.Token)
	}
	u.Path = fmt.Sprintf("/%s/%s.git", ref.Owner, ref.Name)
	return u.String()
}

// checkoutDir returns the stable per-repository checkout location.
func (g *GitConnector) checkoutDir(ref repo.Ref) string {
	name := fmt.Sprintf("%s@%s", ref.Name, ref.Branch)
	return filepath.Join(g.WorkDir, ref.Owner, name)
}

// run executes one git command, classifying failures into connector
// error codes. The token never appears in error messages or logs.
func (g *GitConnector) run(ctx context.Context, dir string, args ...string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never fall back to interactive credential prompts.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := redact(stderr.String(), g.Token)
		slog.Debug("git command failed",
			slog.String("args", strings.Join(redactArgs(args, g.Token), " ")),
			slog.String("stderr", msg))
		return "", classify(args[0], msg, err)
	}
	return stdout.String(), nil
}

// classify maps git failures onto the connector error taxonomy.
func classify(op, stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "401"),
		strings.Contains(lower, "403"),
		strings.Contains(lower, "permission denied"):
		return syncerr.New(syncerr.ErrCodeConnectorAuth,
			fmt.Sprintf("git %s: authentication failed", op), cause)
	case strings.Contains(lower, "not found"),
		strings.Contains(lower, "404"),
		strings.Contains(lower, "could not read from remote repository"):
		return syncerr.New(syncerr.ErrCodeConnectorNotFound,
			fmt.Sprintf("git %s: repository or branch not found", op), cause)
	default:
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = cause.Error()
		}
		return syncerr.ConnectorError(fmt.Sprintf("git %s: %s", op, msg), cause)
	}
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

func redactArgs(args []string, token string) []string {
	if token == "" {
		return args
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = redact(a, token)
	}
	return out
}
