// Copyright (c) 2025, Logilab.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gitsync

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/logilab/onyxia-composer/pkg/defaults"
	"github.com/logilab/onyxia-composer/pkg/errors"
)

// DefaultRemote is the remote pulled from and pushed to.
const DefaultRemote = "origin"

// Repository is a git working tree at a specific directory.
type Repository struct {
	dir    string
	remote string
	env    []string
}

// Option configures a Repository.
type Option func(*Repository)

// WithRemote sets the remote name used by Pull and Push.
func WithRemote(name string) Option {
	return func(r *Repository) {
		if name != "" {
			r.remote = name
		}
	}
}

// WithAuthor sets the author and committer identity for commits.
// Empty values leave git's own configuration in effect.
func WithAuthor(name, email string) Option {
	return func(r *Repository) {
		if name != "" {
			r.env = append(r.env, "GIT_AUTHOR_NAME="+name, "GIT_COMMITTER_NAME="+name)
		}
		if email != "" {
			r.env = append(r.env, "GIT_AUTHOR_EMAIL="+email, "GIT_COMMITTER_EMAIL="+email)
		}
	}
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string, opts ...Option) *Repository {
	r := &Repository{dir: dir, remote: DefaultRemote}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the working tree directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Remote returns the configured remote name.
func (r *Repository) Remote() string {
	return r.remote
}

// Run executes a local git command and returns stdout.
// Stderr is included in the error on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, defaults.GitCommandTimeout, args...)
}

func (r *Repository) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if len(r.env) > 0 {
		command.Env = append(os.Environ(), r.env...)
	}

	name := "unknown"
	if len(args) > 0 {
		name = args[0]
	}

	start := time.Now()
	err := command.Run()
	gitCommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		gitCommandFailures.WithLabelValues(name).Inc()
		runErr := fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Wrap(errors.ErrCodeTimeout,
				fmt.Sprintf("git %s timed out", name), runErr)
		}
		return "", runErr
	}

	slog.Debug("git command completed",
		"command", name,
		"dir", r.dir,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return stdout.String(), nil
}

// wrap classifies err unless it already carries a code.
func wrap(code errors.ErrorCode, msg string, err error) error {
	var se *errors.StructuredError
	if stderrors.As(err, &se) {
		return err
	}
	return errors.Wrap(code, msg, err)
}

// CurrentBranch returns the checked out branch name.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", wrap(errors.ErrCodeInternal, "failed to resolve current branch", err)
	}
	return strings.TrimSpace(out), nil
}

// Head returns the commit hash HEAD points to.
func (r *Repository) Head(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", wrap(errors.ErrCodeInternal, "failed to resolve HEAD", err)
	}
	return strings.TrimSpace(out), nil
}

// Checkout switches the working tree to branch.
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	if _, err := r.Run(ctx, "checkout", "--quiet", branch); err != nil {
		return wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to checkout %s", branch), err)
	}
	return nil
}

// Pull fast-forwards the current branch from the remote.
func (r *Repository) Pull(ctx context.Context) error {
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if _, err := r.run(ctx, defaults.GitNetworkTimeout,
		"pull", "--quiet", "--ff-only", r.remote, branch); err != nil {
		return wrap(errors.ErrCodeUnavailable,
			fmt.Sprintf("failed to pull %s from %s", branch, r.remote), err)
	}
	return nil
}

// Push pushes the current branch to the remote.
func (r *Repository) Push(ctx context.Context) error {
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if _, err := r.run(ctx, defaults.GitNetworkTimeout,
		"push", "--quiet", r.remote, branch); err != nil {
		return wrap(errors.ErrCodeUnavailable,
			fmt.Sprintf("failed to push %s to %s", branch, r.remote), err)
	}
	return nil
}

// Add stages paths, including deletions. With no paths the whole tree is staged.
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	args := []string{"add", "--all"}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	if _, err := r.Run(ctx, args...); err != nil {
		return wrap(errors.ErrCodeInternal, "failed to stage changes", err)
	}
	return nil
}

// Remove deletes paths from the working tree. The deletion is staged by
// the next Add on the same paths.
func (r *Repository) Remove(paths ...string) error {
	for _, p := range paths {
		if err := os.RemoveAll(r.abs(p)); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to remove %s", p), err)
		}
	}
	return nil
}

// Tracked returns the subset of paths that have entries in the index.
func (r *Repository) Tracked(ctx context.Context, paths ...string) ([]string, error) {
	var tracked []string
	for _, p := range paths {
		out, err := r.Run(ctx, "ls-files", "--", p)
		if err != nil {
			return nil, wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to list %s", p), err)
		}
		if strings.TrimSpace(out) != "" {
			tracked = append(tracked, p)
		}
	}
	return tracked, nil
}

// Clean deletes untracked files under paths.
func (r *Repository) Clean(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"clean", "-d", "--force", "--quiet", "--"}, paths...)
	if _, err := r.Run(ctx, args...); err != nil {
		return wrap(errors.ErrCodeInternal, "failed to clean paths", err)
	}
	return nil
}

func (r *Repository) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.dir, p)
}

// Commit records staged changes. It reports false without committing when
// nothing is staged.
func (r *Repository) Commit(ctx context.Context, message string) (bool, error) {
	staged, err := r.hasStagedChanges(ctx)
	if err != nil {
		return false, err
	}
	if !staged {
		slog.Debug("nothing to commit", "dir", r.dir)
		return false, nil
	}
	if _, err := r.Run(ctx, "commit", "--quiet", "-m", message); err != nil {
		return false, wrap(errors.ErrCodeInternal, "failed to commit", err)
	}
	return true, nil
}

func (r *Repository) hasStagedChanges(ctx context.Context) (bool, error) {
	_, err := r.Run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, wrap(errors.ErrCodeInternal, "failed to inspect staged changes", err)
}

// HasChanges reports whether the working tree differs from HEAD,
// including untracked files.
func (r *Repository) HasChanges(ctx context.Context) (bool, error) {
	out, err := r.Run(ctx, "status", "--porcelain")
	if err != nil {
		return false, wrap(errors.ErrCodeInternal, "failed to read status", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// ResetHard resets the branch and working tree to rev.
func (r *Repository) ResetHard(ctx context.Context, rev string) error {
	if _, err := r.Run(ctx, "reset", "--quiet", "--hard", rev); err != nil {
		return wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to reset to %s", rev), err)
	}
	return nil
}

// Tags lists tag names in git's default (name) order.
func (r *Repository) Tags(ctx context.Context) ([]string, error) {
	out, err := r.Run(ctx, "tag", "--list")
	if err != nil {
		return nil, wrap(errors.ErrCodeInternal, "failed to list tags", err)
	}
	var tags []string
	for _, line := range strings.Split(out, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// Publish stages paths, commits them with message and pushes. It reports
// whether a commit was made. When the push fails the commit is reset away.
func (r *Repository) Publish(ctx context.Context, message string, paths ...string) (bool, error) {
	before, err := r.Head(ctx)
	if err != nil {
		return false, err
	}

	if err := r.Add(ctx, paths...); err != nil {
		return false, err
	}

	committed, err := r.Commit(ctx, message)
	if err != nil || !committed {
		return false, err
	}

	if pushErr := r.Push(ctx); pushErr != nil {
		publishRollbacks.Inc()
		if resetErr := r.ResetHard(context.WithoutCancel(ctx), before); resetErr != nil {
			slog.Error("failed to roll back local commit",
				"dir", r.dir,
				"head", before,
				"error", resetErr,
			)
		}
		return false, pushErr
	}

	slog.Info("changes published",
		"dir", r.dir,
		"remote", r.remote,
		"message", message,
	)
	return true, nil
}
