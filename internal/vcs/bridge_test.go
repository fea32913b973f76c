package vcs

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crewline/crewline/internal/db"
	"github.com/crewline/crewline/internal/feature"
)

func TestBranchName(t *testing.T) {
	t.Parallel()

	if got := BranchName("FEAT-012"); got != "feature/feat-012" {
		t.Fatalf("BranchName = %q, want %q", got, "feature/feat-012")
	}
}

func TestPRTitleAndBody(t *testing.T) {
	t.Parallel()

	f := feature.Feature{
		ID:                     "FEAT-001",
		Description:            "login form",
		ArchitectureCompliance: []string{"no inline SQL"},
		VerificationSteps:      []string{"submit valid credentials"},
	}
	if got := prTitle(f); got != "FEAT-001: login form" {
		t.Fatalf("prTitle = %q", got)
	}
	body := prBody(f)
	if !strings.Contains(body, "no inline SQL") {
		t.Fatalf("body missing compliance item:\n%s", body)
	}
	if !strings.Contains(body, "submit valid credentials") {
		t.Fatalf("body missing verification step:\n%s", body)
	}
}

func TestMergePRSkipsWhenMergeDisallowed(t *testing.T) {
	t.Parallel()
	handle, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	features := feature.NewStore(handle)

	f, err := features.Create(context.Background(), feature.Feature{ID: "FEAT-001", Status: feature.StatusPROpen})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	bridge := NewBridge(t.TempDir(), features)
	var out bytes.Buffer
	bridge.SetOutput(&out)

	result, err := bridge.MergePR(context.Background(), f, false)
	if err != nil {
		t.Fatalf("MergePR returned error: %v", err)
	}
	if !result.Skipped || result.Merged {
		t.Fatalf("result = %+v, want skipped", result)
	}
	if !strings.Contains(out.String(), "safe mode") {
		t.Fatalf("output = %q, want safe mode notice", out.String())
	}

	got, err := features.Get(context.Background(), "FEAT-001")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != feature.StatusPROpen {
		t.Fatalf("status = %q, want pr-open untouched", got.Status)
	}
}
