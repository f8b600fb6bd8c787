// Package git provides the repository gateway: a thin wrapper over the
// git binary exposing exactly the primitives the worktree lifecycle
// manager sequences. Every invocation is bounded by the caller's context.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitError contains raw output from a git command. Callers observe the
// raw output and decide what to do; Error() provides a human-readable
// message but Stdout/Stderr are the programmatic surface.
type GitError struct {
	Command string // The git subcommand that failed (e.g. "worktree")
	Args    []string
	Stdout  string
	Stderr  string
	Err     error // Underlying error (e.g. exit code, context deadline)
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// transientMarkers are stderr fragments that indicate contention rather
// than a broken request. Retrying after the contender finishes is safe.
var transientMarkers = []string{
	"index.lock",
	"could not lock",
	"unable to lock",
	"another git process",
	"cannot lock ref",
}

// IsTransient reports whether err looks like a retryable git failure:
// lock contention or a context timeout, as opposed to a fatal condition
// like an invalid ref.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	if errors.Is(gitErr.Err, context.DeadlineExceeded) {
		return true
	}
	for _, marker := range transientMarkers {
		if strings.Contains(gitErr.Stderr, marker) {
			return true
		}
	}
	return false
}

// Repo wraps git operations for one repository or worktree directory.
type Repo struct {
	workDir string
}

// Open returns a Repo for the given root path, verifying that it is a
// git repository. This is the gateway's open primitive.
func Open(ctx context.Context, rootPath string) (*Repo, error) {
	r := &Repo{workDir: rootPath}
	if _, err := r.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", rootPath, err)
	}
	return r, nil
}

// At returns a Repo bound to a different working directory, sharing no
// state with the receiver. Used to run commands inside a worktree.
func (r *Repo) At(dir string) *Repo {
	return &Repo{workDir: dir}
}

// WorkDir returns the working directory for this Repo.
func (r *Repo) WorkDir() string {
	return r.workDir
}

// run executes a git command and returns trimmed stdout.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Surface the deadline instead of git's SIGKILL exit status.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", r.wrapError(err, stdout.String(), stderr.String(), args)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// runWithEnv executes a git command with additional environment variables.
func (r *Repo) runWithEnv(ctx context.Context, args []string, extraEnv []string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", r.wrapError(err, stdout.String(), stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// wrapError wraps git failures with the raw output preserved.
func (r *Repo) wrapError(err error, stdout, stderr string, args []string) error {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)

	command := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			command = arg
			break
		}
	}
	if command == "" && len(args) > 0 {
		command = args[0]
	}

	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// Worktree describes one entry from git worktree list.
type Worktree struct {
	Path   string
	Branch string
	Head   string
}

// ListWorktrees returns all worktrees attached to this repository,
// parsed from the porcelain listing. The primary working tree is
// included; callers filter by branch namespace.
func (r *Repo) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	out, err := r.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	var current Worktree

	flush := func() {
		if current.Path != "" {
			worktrees = append(worktrees, current)
			current = Worktree{}
		}
	}

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	flush()

	return worktrees, nil
}

// CreateWorktree creates a worktree at path on a new branch starting
// from baseRef.
func (r *Repo) CreateWorktree(ctx context.Context, path, branch, baseRef string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating worktree parent: %w", err)
	}
	_, err := r.run(ctx, "worktree", "add", "-b", branch, path, baseRef)
	return err
}

// RemoveWorktree removes the worktree at path and prunes stale worktree
// metadata. Prune failures are ignored; a later prune repeats the work.
func (r *Repo) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	if _, err := r.run(ctx, args...); err != nil {
		return err
	}
	_, _ = r.run(ctx, "worktree", "prune")
	return nil
}

// StatusReport describes the clean/dirty state of one working tree.
type StatusReport struct {
	Clean     bool
	Modified  []string
	Added     []string
	Deleted   []string
	Untracked []string
}

// Summary returns a short human-readable description of the report,
// suitable for dirty-refusal error messages.
func (s *StatusReport) Summary() string {
	if s.Clean {
		return "clean"
	}
	var parts []string
	if n := len(s.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if n := len(s.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(s.Deleted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", n))
	}
	if n := len(s.Untracked); n > 0 {
		parts = append(parts, fmt.Sprintf("%d untracked", n))
	}
	return strings.Join(parts, ", ")
}

// Files returns every path mentioned in the report.
func (s *StatusReport) Files() []string {
	var files []string
	files = append(files, s.Modified...)
	files = append(files, s.Added...)
	files = append(files, s.Deleted...)
	files = append(files, s.Untracked...)
	return files
}

// Status returns the porcelain status of the worktree at path.
func (r *Repo) Status(ctx context.Context, path string) (*StatusReport, error) {
	out, err := r.At(path).run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Clean: true}
	if out == "" {
		return report, nil
	}

	report.Clean = false
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		code := line[:2]
		file := line[3:]

		switch {
		case strings.Contains(code, "?"):
			report.Untracked = append(report.Untracked, file)
		case strings.Contains(code, "D"):
			report.Deleted = append(report.Deleted, file)
		case strings.Contains(code, "A"):
			report.Added = append(report.Added, file)
		default:
			report.Modified = append(report.Modified, file)
		}
	}

	return report, nil
}

// Signature identifies a commit author.
type Signature struct {
	Name  string
	Email string
}

// Commit stages all changes in the worktree at path and commits them,
// returning the new head sha. The author is injected via environment so
// agent commits never depend on the worktree's git config.
func (r *Repo) Commit(ctx context.Context, path, message string, author Signature) (string, error) {
	wt := r.At(path)
	if _, err := wt.run(ctx, "add", "-A"); err != nil {
		return "", err
	}

	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_COMMITTER_NAME=" + author.Name,
		"GIT_COMMITTER_EMAIL=" + author.Email,
	}
	if _, err := wt.runWithEnv(ctx, []string{"commit", "-m", message}, env); err != nil {
		return "", err
	}

	return wt.run(ctx, "rev-parse", "HEAD")
}

// HeadSHA returns the commit hash at HEAD of the worktree at path.
func (r *Repo) HeadSHA(ctx context.Context, path string) (string, error) {
	return r.At(path).run(ctx, "rev-parse", "HEAD")
}
