package openspec

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/crewline/crewline/internal/feature"
)

// Default agent role tags assigned to imported features.
const (
	RoleDev      = "dev"
	RoleReviewer = "reviewer"
	RoleQA       = "qa"
)

// Importer upserts change artifacts into features.
type Importer struct {
	features *feature.Store
	client   *Client
}

// NewImporter creates an importer over the feature store.
func NewImporter(features *feature.Store, client *Client) *Importer {
	return &Importer{features: features, client: client}
}

// Client returns the underlying CLI client.
func (im *Importer) Client() *Client {
	return im.client
}

// Result summarizes one change import.
type Result struct {
	Change  string
	Created []string
	Updated []string
}

// Import upserts every task group of a change into features. Re-imports
// refresh content fields but preserve id, status, passes, and manual
// dependencies. Groups are chained: group g depends on group g-1.
func (im *Importer) Import(ctx context.Context, change string) (Result, error) {
	result := Result{Change: change}
	artifacts, err := im.client.ChangeArtifacts(ctx, change)
	if err != nil {
		return result, err
	}

	groups := ParseTaskGroups(artifacts.Tasks)
	if len(groups) == 0 {
		// A change with no parseable groups still becomes one feature.
		groups = []TaskGroup{{Title: change}}
	}
	specContent := strings.Join(artifacts.Specs, "\n")
	requirements, verificationSteps := ParseSpec(specContent)

	var previousID string
	for g, group := range groups {
		ordinal := g + 1
		id, created, err := im.upsertGroup(ctx, change, ordinal, len(groups), group, requirements, verificationSteps)
		if err != nil {
			return result, err
		}
		if created {
			result.Created = append(result.Created, id)
		} else {
			result.Updated = append(result.Updated, id)
		}
		if ordinal >= 2 {
			if err := im.chainDependency(ctx, id, previousID); err != nil {
				return result, err
			}
		}
		previousID = id
	}
	return result, nil
}

func (im *Importer) upsertGroup(ctx context.Context, change string, ordinal, total int, group TaskGroup, specRequirements, verificationSteps []string) (string, bool, error) {
	requirements := append(append([]string{}, group.Steps...), specRequirements...)
	notes := fmt.Sprintf("Imported from openspec change %q (task group %d/%d)", change, ordinal, total)
	reference := Reference(change)

	existing, found, err := im.features.GetByChangeGroup(ctx, change, ordinal)
	if err != nil {
		return "", false, err
	}
	if found {
		// Content refresh only: id, status, passes, and manually wired
		// depends_on stay untouched.
		update := feature.Update{
			Category:          strPtr("openspec"),
			Description:       strPtr(group.Title),
			Notes:             strPtr(notes),
			Requirements:      &requirements,
			VerificationSteps: &verificationSteps,
			OpenSpecReference: strPtr(reference),
		}
		if _, err := im.features.Update(ctx, existing.ID, update); err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}

	id, err := im.features.NextID(ctx)
	if err != nil {
		return "", false, err
	}
	created := feature.Feature{
		ID:                id,
		Category:          "openspec",
		Description:       group.Title,
		Notes:             notes,
		Status:            feature.StatusPending,
		DependsOn:         []string{},
		Requirements:      requirements,
		VerificationSteps: verificationSteps,
		AssignedTo:        RoleDev,
		ReviewedBy:        RoleReviewer,
		TestedBy:          RoleQA,
		Passes:            false,
		OpenSpecChangeID:  change,
		OpenSpecTaskGroup: ordinal,
		OpenSpecReference: reference,
	}
	if _, err := im.features.Create(ctx, created); err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (im *Importer) chainDependency(ctx context.Context, id, previousID string) error {
	f, err := im.features.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, dep := range f.DependsOn {
		if dep == previousID {
			return nil
		}
	}
	deps := append(append([]string{}, f.DependsOn...), previousID)
	_, err = im.features.Update(ctx, id, feature.Update{DependsOn: &deps})
	return err
}

// ImportAll imports every active change.
func (im *Importer) ImportAll(ctx context.Context) ([]Result, error) {
	changes, err := im.client.ActiveChanges(ctx)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, change := range changes {
		result, err := im.Import(ctx, change)
		if err != nil {
			return results, fmt.Errorf("import change %s: %w", change, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// MaybeArchive archives the change the feature belongs to once every
// sibling feature is complete. Returns whether the archive ran.
func (im *Importer) MaybeArchive(ctx context.Context, featureID string) (bool, error) {
	f, err := im.features.Get(ctx, featureID)
	if err != nil {
		return false, err
	}
	if f.OpenSpecChangeID == "" {
		return false, nil
	}
	all, err := im.features.List(ctx, feature.Filter{})
	if err != nil {
		return false, err
	}
	for _, sibling := range all {
		if sibling.OpenSpecChangeID != f.OpenSpecChangeID {
			continue
		}
		if sibling.Status != feature.StatusComplete {
			return false, nil
		}
	}
	if err := im.client.Archive(ctx, f.OpenSpecChangeID); err != nil {
		return false, err
	}
	log.Info().Str("change", f.OpenSpecChangeID).Msg("archived completed change")
	return true, nil
}

func strPtr(s string) *string {
	return &s
}
