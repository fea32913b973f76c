// Package scheduler picks the next actionable (feature, action) pair from
// the current feature set. It is stateless: callers pass the features and
// the escalation set on every call.
package scheduler

import (
	"github.com/crewline/crewline/internal/feature"
)

// Action is the pipeline step the controller should run next.
type Action string

// Actions in pipeline order.
const (
	ActionDev    Action = "dev"
	ActionReview Action = "review"
	ActionQA     Action = "qa"
	ActionPR     Action = "pr"
	ActionMerge  Action = "merge"
)

// Next returns the first actionable feature in dependency order with the
// action to take on it. ok is false when nothing is actionable; the caller
// decides between all-complete, all-blocked, and all-escalated via Drain.
func Next(features []feature.Feature, escalated map[string]bool) (Action, feature.Feature, bool, error) {
	order, err := feature.ResolveOrder(features)
	if err != nil {
		return "", feature.Feature{}, false, err
	}
	byID := feature.ByID(features)
	for _, f := range order {
		if f.Status == feature.StatusComplete {
			continue
		}
		if escalated[f.ID] {
			continue
		}
		if !feature.DepsMet(f, byID) {
			continue
		}
		return ActionFor(f), f, true, nil
	}
	return "", feature.Feature{}, false, nil
}

// ActionFor maps a feature to its next action. A QA pass routes through PR
// creation next regardless of whatever status QA left behind, but once the
// PR exists the feature advances to merge; passes stays set for the rest of
// its life.
func ActionFor(f feature.Feature) Action {
	if f.Status == feature.StatusPROpen {
		return ActionMerge
	}
	if f.Passes {
		return ActionPR
	}
	switch f.Status {
	case feature.StatusPending, feature.StatusNeedsRevision:
		return ActionDev
	case feature.StatusReadyForReview:
		return ActionReview
	case feature.StatusApproved, feature.StatusQATesting:
		return ActionQA
	default:
		// Unknown or agent-invented status: hand it back to dev.
		return ActionDev
	}
}

// DrainReason explains why Next returned nothing.
type DrainReason string

// Drain outcomes.
const (
	DrainComplete  DrainReason = "complete"
	DrainEscalated DrainReason = "escalated"
	DrainBlocked   DrainReason = "blocked"
)

// Drain classifies an empty schedule.
func Drain(features []feature.Feature, escalated map[string]bool) DrainReason {
	allComplete := true
	for _, f := range features {
		if f.Status == feature.StatusComplete {
			continue
		}
		allComplete = false
		if !escalated[f.ID] {
			return DrainBlocked
		}
	}
	if allComplete {
		return DrainComplete
	}
	return DrainEscalated
}
