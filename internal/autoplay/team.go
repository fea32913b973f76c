package autoplay

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/scheduler"
)

// NextSteps returns up to n actionable (action, feature) pairs in
// dependency order. Used by team mode and the guided command.
func NextSteps(features []feature.Feature, escalated map[string]bool, n int) ([]scheduler.Action, []feature.Feature, error) {
	order, err := feature.ResolveOrder(features)
	if err != nil {
		return nil, nil, err
	}
	byID := feature.ByID(features)
	var actions []scheduler.Action
	var picked []feature.Feature
	for _, f := range order {
		if len(picked) >= n {
			break
		}
		if f.Status == feature.StatusComplete || escalated[f.ID] {
			continue
		}
		if !feature.DepsMet(f, byID) {
			continue
		}
		actions = append(actions, scheduler.ActionFor(f))
		picked = append(picked, f)
	}
	return actions, picked, nil
}

func stepInstruction(action scheduler.Action, f feature.Feature) string {
	switch action {
	case scheduler.ActionDev:
		return fmt.Sprintf("Have the **dev** agent implement `%s` (%s), then move it to `ready-for-review`.", f.ID, f.Description)
	case scheduler.ActionReview:
		return fmt.Sprintf("Have the **reviewer** agent verify `%s` against every architecture principle, then set `approved` or `needs-revision`.", f.ID)
	case scheduler.ActionQA:
		return fmt.Sprintf("Have the **QA** agent run every verification step for `%s`; on success set `passes=true`, on failure set `needs-revision`.", f.ID)
	case scheduler.ActionPR:
		return fmt.Sprintf("Open a pull request for `%s` from branch `feature/%s`, then set the status to `pr-open`.", f.ID, strings.ToLower(f.ID))
	case scheduler.ActionMerge:
		return fmt.Sprintf("Merge the pull request for `%s`, then set the status to `complete`.", f.ID)
	default:
		return fmt.Sprintf("Hand `%s` back to the dev agent.", f.ID)
	}
}

// GuidedMarkdown renders the next-step instructions for a human driver.
func GuidedMarkdown(features []feature.Feature, escalated map[string]bool, batch int) (string, error) {
	actions, picked, err := NextSteps(features, escalated, batch)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("# Pipeline: next steps\n\n")
	if len(picked) == 0 {
		switch scheduler.Drain(features, escalated) {
		case scheduler.DrainComplete:
			b.WriteString("All features are complete. Nothing to do.\n")
		case scheduler.DrainBlocked:
			b.WriteString("Nothing is actionable: remaining features wait on unmet dependencies.\n")
			for id, deps := range feature.Blocked(features) {
				fmt.Fprintf(&b, "- `%s` blocked on %v\n", id, deps)
			}
		case scheduler.DrainEscalated:
			b.WriteString("Every remaining feature is escalated. Human attention required.\n")
		}
		return b.String(), nil
	}
	for i, f := range picked {
		fmt.Fprintf(&b, "%d. %s\n", i+1, stepInstruction(actions[i], f))
	}
	return b.String(), nil
}

// RenderMarkdown renders markdown for the terminal.
func RenderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// runTeam emits instructions for a human-driven multi-agent tool instead
// of spawning subprocess agents.
func (c *Controller) runTeam(ctx context.Context) error {
	if err := c.maybeAutoImport(ctx); err != nil {
		return err
	}
	batch, err := c.cfg.FeaturesPerLeadSession(ctx)
	if err != nil {
		return err
	}
	features, err := c.features.List(ctx, feature.Filter{})
	if err != nil {
		return err
	}
	md, err := GuidedMarkdown(features, c.escalated, batch)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, RenderMarkdown(md))
	return nil
}
