package vcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/crewline/crewline/internal/feature"
)

// Bridge performs the pr and merge pipeline actions for features. Status
// transitions to pr-open and complete happen here and nowhere else.
type Bridge struct {
	root     string
	features *feature.Store
	out      io.Writer
}

// NewBridge creates a VCS bridge rooted at the project directory.
func NewBridge(root string, features *feature.Store) *Bridge {
	return &Bridge{root: root, features: features, out: os.Stdout}
}

// SetOutput redirects operator-facing messages, mainly for tests.
func (b *Bridge) SetOutput(w io.Writer) {
	b.out = w
}

// BranchName returns the feature branch name for an id.
func BranchName(id string) string {
	return "feature/" + strings.ToLower(id)
}

func prTitle(f feature.Feature) string {
	return fmt.Sprintf("%s: %s", f.ID, f.Description)
}

func prBody(f feature.Feature) string {
	var sb strings.Builder
	sb.WriteString("Automated pipeline PR.\n\n")
	if len(f.ArchitectureCompliance) > 0 {
		sb.WriteString("Architecture compliance:\n")
		for _, item := range f.ArchitectureCompliance {
			sb.WriteString("- " + item + "\n")
		}
	}
	if len(f.VerificationSteps) > 0 {
		sb.WriteString("\nVerification:\n")
		for _, step := range f.VerificationSteps {
			sb.WriteString("- " + step + "\n")
		}
	}
	return sb.String()
}

func ghAvailable() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

func (b *Bridge) runGH(ctx context.Context, args ...string) error {
	log.Debug().Str("dir", b.root).Strs("args", args).Msg("running gh command")
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = b.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CreatePR puts the feature on its branch, pushes when a remote exists,
// opens a PR when gh is available, and transitions the feature to pr-open.
// Absence of the remote or of gh degrades to operator instructions.
func (b *Bridge) CreatePR(ctx context.Context, f feature.Feature) error {
	branch := BranchName(f.ID)
	current, err := CurrentBranch(ctx, b.root)
	if err != nil {
		return err
	}
	if current != branch {
		if BranchExists(ctx, b.root, branch) {
			if err := Checkout(ctx, b.root, branch); err != nil {
				return err
			}
		} else if err := CreateBranch(ctx, b.root, branch); err != nil {
			return err
		}
	}

	if HasRemote(ctx, b.root, "origin") {
		if err := Push(ctx, b.root, branch); err != nil {
			return err
		}
	} else {
		log.Info().Str("branch", branch).Msg("no origin remote configured, staying local")
	}

	if ghAvailable() {
		if err := b.runGH(ctx, "pr", "create", "--title", prTitle(f), "--body", prBody(f)); err != nil {
			return fmt.Errorf("create PR for %s: %w", f.ID, err)
		}
	} else {
		fmt.Fprintf(b.out, "gh CLI not found: open a PR for branch %s manually (%s)\n", branch, prTitle(f))
	}

	status := feature.StatusPROpen
	if _, err := b.features.Update(ctx, f.ID, feature.Update{Status: &status}); err != nil {
		return err
	}
	log.Info().Str("feature", f.ID).Str("branch", branch).Msg("feature moved to pr-open")
	return nil
}

// MergeResult reports the outcome of a merge attempt.
type MergeResult struct {
	Merged  bool
	Skipped bool
}

// MergePR merges the feature branch and transitions the feature to
// complete. When merging is disallowed (safe mode or auto_merge=false) the
// feature is left at pr-open and the result is marked skipped.
func (b *Bridge) MergePR(ctx context.Context, f feature.Feature, mergeAllowed bool) (MergeResult, error) {
	if !mergeAllowed {
		fmt.Fprintf(b.out, "safe mode: leaving %s at pr-open for human review\n", f.ID)
		return MergeResult{Skipped: true}, nil
	}

	branch := BranchName(f.ID)
	if ghAvailable() && HasRemote(ctx, b.root, "origin") {
		if err := b.runGH(ctx, "pr", "merge", branch, "--merge", "--delete-branch"); err != nil {
			log.Warn().Err(err).Str("feature", f.ID).Msg("gh merge failed, falling back to local merge")
			if err := b.localMerge(ctx, branch); err != nil {
				return MergeResult{}, err
			}
		}
	} else if err := b.localMerge(ctx, branch); err != nil {
		return MergeResult{}, err
	}

	status := feature.StatusComplete
	if _, err := b.features.Update(ctx, f.ID, feature.Update{Status: &status}); err != nil {
		return MergeResult{}, err
	}
	log.Info().Str("feature", f.ID).Msg("feature merged and complete")
	return MergeResult{Merged: true}, nil
}

func (b *Bridge) localMerge(ctx context.Context, branch string) error {
	target := DefaultBranch(ctx, b.root)
	if err := Checkout(ctx, b.root, target); err != nil {
		return err
	}
	return Merge(ctx, b.root, branch)
}
