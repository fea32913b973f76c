package feature

import (
	"fmt"
	"slices"
)

// ResolveOrder returns the features in dependency order: every feature
// appears after everything it depends on. Ties keep the order inherited
// from the depth-first walk over ids. A back-edge, including a self-loop,
// is a terminal error naming the offending feature.
func ResolveOrder(features []Feature) ([]Feature, error) {
	byID := make(map[string]Feature, len(features))
	ids := make([]string, 0, len(features))
	for _, f := range features {
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}
	slices.SortFunc(ids, CompareIDs)

	visited := make(map[string]bool, len(features))
	visiting := make(map[string]bool, len(features))
	order := make([]Feature, 0, len(features))

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return fmt.Errorf("circular dependency: %s", id)
		}
		visiting[id] = true
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				// Unknown ids are not edges; the scheduler reports
				// them as unmet via DepsMet.
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[id] = false
		visited[id] = true
		order = append(order, byID[id])
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DepsMet reports whether every dependency of f exists and is complete.
// passes=true alone is not completion; status is authoritative.
func DepsMet(f Feature, byID map[string]Feature) bool {
	for _, dep := range f.DependsOn {
		target, ok := byID[dep]
		if !ok || target.Status != StatusComplete {
			return false
		}
	}
	return true
}

// ByID indexes features by id.
func ByID(features []Feature) map[string]Feature {
	byID := make(map[string]Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}
	return byID
}

// Blocked returns, per feature id, the dependency ids that are missing or
// not complete. Features with no unmet dependencies are absent from the
// result.
func Blocked(features []Feature) map[string][]string {
	byID := ByID(features)
	out := map[string][]string{}
	for _, f := range features {
		if f.Status == StatusComplete {
			continue
		}
		var unmet []string
		for _, dep := range f.DependsOn {
			target, ok := byID[dep]
			if !ok || target.Status != StatusComplete {
				unmet = append(unmet, dep)
			}
		}
		if len(unmet) > 0 {
			out[f.ID] = unmet
		}
	}
	return out
}
