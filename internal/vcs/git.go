// Package vcs drives branch, push, PR, and merge operations through the
// git and gh CLIs, degrading gracefully when either is unavailable.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Available checks if the given directory is inside a git work tree.
func Available(ctx context.Context, repoRoot string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	log.Debug().Str("dir", dir).Strs("args", args).Msg("running git command")
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// CurrentBranch resolves the checked-out branch name.
func CurrentBranch(ctx context.Context, repoRoot string) (string, error) {
	if !Available(ctx, repoRoot) {
		return "", fmt.Errorf("not a git repository: %s", repoRoot)
	}
	out, err := runGit(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" || branch == "HEAD" {
		return "", fmt.Errorf("resolve current branch: detached HEAD")
	}
	return branch, nil
}

// BranchExists reports whether a local branch exists.
func BranchExists(ctx context.Context, repoRoot, branch string) bool {
	_, err := runGit(ctx, repoRoot, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// Checkout switches to an existing branch.
func Checkout(ctx context.Context, repoRoot, branch string) error {
	if _, err := runGit(ctx, repoRoot, "checkout", branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

// CreateBranch creates and switches to a new branch.
func CreateBranch(ctx context.Context, repoRoot, branch string) error {
	if _, err := runGit(ctx, repoRoot, "checkout", "-b", branch); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

// HasRemote reports whether a remote with the given name is configured.
func HasRemote(ctx context.Context, repoRoot, name string) bool {
	out, err := runGit(ctx, repoRoot, "remote")
	if err != nil {
		return false
	}
	for _, remote := range strings.Fields(out) {
		if remote == name {
			return true
		}
	}
	return false
}

// Push pushes a branch to origin with upstream tracking.
func Push(ctx context.Context, repoRoot, branch string) error {
	if _, err := runGit(ctx, repoRoot, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}

// DefaultBranch resolves the remote's default branch from its symbolic
// HEAD, falling back to main.
func DefaultBranch(ctx context.Context, repoRoot string) string {
	out, err := runGit(ctx, repoRoot, "symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err == nil {
		ref := strings.TrimSpace(out)
		if name, ok := strings.CutPrefix(ref, "origin/"); ok && name != "" {
			return name
		}
	}
	return "main"
}

// Merge merges a branch into the current one without fast-forwarding.
func Merge(ctx context.Context, repoRoot, branch string) error {
	message := fmt.Sprintf("Merge %s", branch)
	if _, err := runGit(ctx, repoRoot, "merge", "--no-ff", "-m", message, branch); err != nil {
		return fmt.Errorf("merge %s: %w", branch, err)
	}
	return nil
}
