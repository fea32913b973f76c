package config_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/db"
)

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	handle, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	return config.NewStore(handle)
}

func TestSeededDefaults(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mode, err := store.ExecutionMode(ctx)
	if err != nil {
		t.Fatalf("ExecutionMode returned error: %v", err)
	}
	if mode != config.ModeOrchestrator {
		t.Fatalf("mode = %q, want %q", mode, config.ModeOrchestrator)
	}

	retries, err := store.MaxRetries(ctx)
	if err != nil {
		t.Fatalf("MaxRetries returned error: %v", err)
	}
	if retries != 3 {
		t.Fatalf("max retries = %d, want 3", retries)
	}

	allowed, err := store.MergeAllowed(ctx)
	if err != nil {
		t.Fatalf("MergeAllowed returned error: %v", err)
	}
	if !allowed {
		t.Fatal("MergeAllowed = false with defaults, want true")
	}
}

func TestSetPersists(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, config.KeyModel, "opus"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	model, err := store.Model(ctx)
	if err != nil {
		t.Fatalf("Model returned error: %v", err)
	}
	if model != "opus" {
		t.Fatalf("model = %q, want %q", model, "opus")
	}
}

func TestMergeAllowedGates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	// safe_mode wins even with auto_merge on.
	if err := store.Set(ctx, config.KeySafeMode, "true"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	allowed, err := store.MergeAllowed(ctx)
	if err != nil {
		t.Fatalf("MergeAllowed returned error: %v", err)
	}
	if allowed {
		t.Fatal("MergeAllowed = true with safe_mode on")
	}

	if err := store.Set(ctx, config.KeySafeMode, "false"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Set(ctx, config.KeyAutoMerge, "false"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	allowed, err = store.MergeAllowed(ctx)
	if err != nil {
		t.Fatalf("MergeAllowed returned error: %v", err)
	}
	if allowed {
		t.Fatal("MergeAllowed = true with auto_merge off")
	}
}

func TestOverrideShadowsWithoutPersisting(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	store.Override(config.KeyExecutionMode, config.ModeTeam)
	mode, err := store.ExecutionMode(ctx)
	if err != nil {
		t.Fatalf("ExecutionMode returned error: %v", err)
	}
	if mode != config.ModeTeam {
		t.Fatalf("mode = %q, want override %q", mode, config.ModeTeam)
	}

	snapshot, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if snapshot[config.KeyExecutionMode] != config.ModeOrchestrator {
		t.Fatalf("stored mode = %q, want untouched %q", snapshot[config.KeyExecutionMode], config.ModeOrchestrator)
	}
}

func TestExecutionModeRejectsUnknown(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, config.KeyExecutionMode, "solo"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if _, err := store.ExecutionMode(ctx); err == nil {
		t.Fatal("ExecutionMode accepted unknown mode")
	}
}
