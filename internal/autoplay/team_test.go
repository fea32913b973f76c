package autoplay

import (
	"strings"
	"testing"

	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/scheduler"
)

func TestNextStepsRespectsBatchAndOrder(t *testing.T) {
	t.Parallel()

	features := []feature.Feature{
		{ID: "FEAT-003", Status: feature.StatusPending, DependsOn: []string{"FEAT-001"}},
		{ID: "FEAT-001", Status: feature.StatusReadyForReview},
		{ID: "FEAT-002", Status: feature.StatusPROpen},
	}

	actions, picked, err := NextSteps(features, nil, 2)
	if err != nil {
		t.Fatalf("NextSteps returned error: %v", err)
	}
	if len(picked) != 2 {
		t.Fatalf("len(picked) = %d, want 2", len(picked))
	}
	// FEAT-003 waits on FEAT-001; the actionable pair fills the batch.
	if picked[0].ID != "FEAT-001" || picked[1].ID != "FEAT-002" {
		t.Fatalf("picked = [%s %s], want [FEAT-001 FEAT-002]", picked[0].ID, picked[1].ID)
	}
	if actions[0] != scheduler.ActionReview || actions[1] != scheduler.ActionMerge {
		t.Fatalf("actions = %v, want [review merge]", actions)
	}
}

func TestGuidedMarkdownListsInstructions(t *testing.T) {
	t.Parallel()

	features := []feature.Feature{
		{ID: "FEAT-001", Status: feature.StatusPending, Description: "login form"},
	}

	md, err := GuidedMarkdown(features, nil, 3)
	if err != nil {
		t.Fatalf("GuidedMarkdown returned error: %v", err)
	}
	if !strings.Contains(md, "1. ") {
		t.Fatalf("markdown missing numbered step:\n%s", md)
	}
	if !strings.Contains(md, "FEAT-001") || !strings.Contains(md, "dev") {
		t.Fatalf("markdown missing dev instruction for FEAT-001:\n%s", md)
	}
}

func TestGuidedMarkdownDrainReasons(t *testing.T) {
	t.Parallel()

	complete := []feature.Feature{{ID: "FEAT-001", Status: feature.StatusComplete}}
	md, err := GuidedMarkdown(complete, nil, 3)
	if err != nil {
		t.Fatalf("GuidedMarkdown returned error: %v", err)
	}
	if !strings.Contains(md, "All features are complete") {
		t.Fatalf("markdown missing completion message:\n%s", md)
	}

	blocked := []feature.Feature{
		{ID: "FEAT-001", Status: feature.StatusPending, DependsOn: []string{"FEAT-404"}},
	}
	md, err = GuidedMarkdown(blocked, nil, 3)
	if err != nil {
		t.Fatalf("GuidedMarkdown returned error: %v", err)
	}
	if !strings.Contains(md, "unmet dependencies") || !strings.Contains(md, "FEAT-404") {
		t.Fatalf("markdown missing blocked explanation:\n%s", md)
	}

	escalated := []feature.Feature{{ID: "FEAT-001", Status: feature.StatusNeedsRevision}}
	md, err = GuidedMarkdown(escalated, map[string]bool{"FEAT-001": true}, 3)
	if err != nil {
		t.Fatalf("GuidedMarkdown returned error: %v", err)
	}
	if !strings.Contains(md, "escalated") {
		t.Fatalf("markdown missing escalation message:\n%s", md)
	}
}

func TestRenderMarkdownNeverFails(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("# heading\n\nbody\n")
	if out == "" {
		t.Fatal("RenderMarkdown returned empty output")
	}
}
