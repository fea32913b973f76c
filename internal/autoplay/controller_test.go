package autoplay

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crewline/crewline/internal/agentexec"
	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/db"
	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/openspec"
	"github.com/crewline/crewline/internal/vcs"
)

func writeRolePrompts(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, ".framework", "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir prompts: %v", err)
	}
	for _, role := range agentexec.Roles() {
		path := filepath.Join(dir, role+".md")
		if err := os.WriteFile(path, []byte("You are the "+role+" agent.\n"), 0o644); err != nil {
			t.Fatalf("write prompt %s: %v", role, err)
		}
	}
}

func newTestController(t *testing.T) (*Controller, *feature.Store, *config.Store, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	writeRolePrompts(t, root)
	handle, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })

	features := feature.NewStore(handle)
	cfg := config.NewStore(handle)
	bridge := vcs.NewBridge(root, features)
	importer := openspec.NewImporter(features, openspec.NewClient(root))

	controller := New(root, features, cfg, bridge, importer)
	var out bytes.Buffer
	controller.SetOutput(&out)
	bridge.SetOutput(&out)
	return controller, features, cfg, &out
}

func TestRunCompletesImmediatelyOnEmptyBacklog(t *testing.T) {
	t.Parallel()
	controller, _, _, out := newTestController(t)

	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "autoplay finished") {
		t.Fatalf("output = %q, want summary", out.String())
	}
}

func TestRunSafeModeEscalatesUnmergeablePR(t *testing.T) {
	t.Parallel()
	controller, features, cfg, out := newTestController(t)
	ctx := context.Background()

	if err := cfg.Set(ctx, config.KeySafeMode, "true"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	// A QA-passed feature whose PR is already open must reach the merge
	// step and drain, not re-enter PR creation.
	f := feature.Feature{ID: "FEAT-001", Status: feature.StatusPROpen, Passes: true}
	if _, err := features.Create(ctx, f); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	err := controller.Run(ctx)
	if !errors.Is(err, ErrEscalated) {
		t.Fatalf("Run error = %v, want ErrEscalated", err)
	}
	if !controller.escalated["FEAT-001"] {
		t.Fatal("FEAT-001 not escalated after safe-mode skip")
	}

	// The feature itself stays at pr-open for a human to merge.
	got, err := features.Get(ctx, "FEAT-001")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != feature.StatusPROpen {
		t.Fatalf("status = %q, want pr-open", got.Status)
	}
	if !strings.Contains(out.String(), "escalated to human attention") {
		t.Fatalf("output = %q, want escalation notice", out.String())
	}
}

func TestRunTeamModePrintsGuidance(t *testing.T) {
	t.Parallel()
	controller, features, cfg, out := newTestController(t)
	ctx := context.Background()

	cfg.Override(config.KeyExecutionMode, config.ModeTeam)
	if _, err := features.Create(ctx, feature.Feature{ID: "FEAT-001", Description: "login form"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := controller.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "FEAT-001") {
		t.Fatalf("output = %q, want instruction for FEAT-001", out.String())
	}
}

func TestRunFailsFastWithoutPromptTemplates(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	handle, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })

	features := feature.NewStore(handle)
	cfg := config.NewStore(handle)
	controller := New(root, features, cfg, vcs.NewBridge(root, features), openspec.NewImporter(features, openspec.NewClient(root)))
	controller.SetOutput(&bytes.Buffer{})

	ctx := context.Background()
	if _, err := features.Create(ctx, feature.Feature{ID: "FEAT-001"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	err = controller.Run(ctx)
	if err == nil {
		t.Fatal("Run returned nil error without prompt templates")
	}
	if !strings.Contains(err.Error(), "role prompt template missing") {
		t.Fatalf("error = %v, want missing template", err)
	}
}

func TestCountRetryEscalatesPastCap(t *testing.T) {
	t.Parallel()
	controller, _, _, _ := newTestController(t)

	for i := 0; i < 3; i++ {
		if controller.countRetry("FEAT-001", 3) {
			t.Fatalf("escalated on retry %d, cap is 3", i+1)
		}
	}
	if !controller.countRetry("FEAT-001", 3) {
		t.Fatal("not escalated past the retry cap")
	}
	if !controller.escalated["FEAT-001"] {
		t.Fatal("escalation set not updated")
	}
}
