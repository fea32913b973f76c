package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	_ "embed"
)

// ExportFile is the on-disk shape of a feature export.
type ExportFile struct {
	Features []Feature `json:"features"`
}

// Export writes every feature to path as {"features":[...]} JSON.
func (s *Store) Export(ctx context.Context, path string) error {
	features, err := s.List(ctx, Filter{})
	if err != nil {
		return err
	}
	if features == nil {
		features = []Feature{}
	}
	raw, err := json.MarshalIndent(ExportFile{Features: features}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

//go:embed export_schema.json
var exportSchemaJSON string

// Import reads an export file, validates its shape, and upserts every
// feature by id. Round-tripping an export yields an identical feature set.
func (s *Store) Import(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	if err := validateExport(raw); err != nil {
		return 0, err
	}
	var file ExportFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse import file: %w", err)
	}
	count := 0
	for _, f := range file.Features {
		if _, err := s.Get(ctx, f.ID); err == nil {
			if _, err := s.Update(ctx, f.ID, fullUpdate(f)); err != nil {
				return count, err
			}
		} else {
			if _, err := s.Create(ctx, f); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

func validateExport(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(exportSchemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate import file: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		msgs = append(msgs, schemaErr.String())
	}
	return fmt.Errorf("import file is not a valid feature export: %v", msgs)
}

func fullUpdate(f Feature) Update {
	return Update{
		Category:               &f.Category,
		Description:            &f.Description,
		Notes:                  &f.Notes,
		Status:                 &f.Status,
		DependsOn:              &f.DependsOn,
		Requirements:           &f.Requirements,
		ArchitectureCompliance: &f.ArchitectureCompliance,
		VerificationSteps:      &f.VerificationSteps,
		AssignedTo:             &f.AssignedTo,
		ReviewedBy:             &f.ReviewedBy,
		TestedBy:               &f.TestedBy,
		Passes:                 &f.Passes,
		OpenSpecChangeID:       &f.OpenSpecChangeID,
		OpenSpecTaskGroup:      &f.OpenSpecTaskGroup,
		OpenSpecReference:      &f.OpenSpecReference,
	}
}
