package feature

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	source := newTestStore(t)
	target := newTestStore(t)
	ctx := context.Background()

	_, err := source.Create(ctx, Feature{
		ID:           "FEAT-001",
		Category:     "auth",
		Description:  "login form",
		Status:       StatusQATesting,
		DependsOn:    []string{"FEAT-000"},
		Requirements: []string{"validate credentials"},
		Passes:       true,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "architecture", "feature-requirements.json")
	require.NoError(t, source.Export(ctx, path))

	count, err := target.Import(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := target.Get(ctx, "FEAT-001")
	require.NoError(t, err)
	require.Equal(t, StatusQATesting, got.Status)
	require.True(t, got.Passes)
	require.Equal(t, []string{"FEAT-000"}, got.DependsOn)
	require.Equal(t, []string{"validate credentials"}, got.Requirements)
}

func TestImportUpsertsById(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, Feature{ID: "FEAT-001", Description: "old"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	payload := `{"features":[{"id":"FEAT-001","description":"new","status":"in-dev"}]}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	count, err := store.Import(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := store.Get(ctx, "FEAT-001")
	require.NoError(t, err)
	require.Equal(t, "new", got.Description)
	require.Equal(t, StatusInDev, got.Status)
}

func TestImportRejectsMalformedFile(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"features":[{"description":"no id"}]}`), 0o644))

	_, err := store.Import(context.Background(), path)
	require.Error(t, err)
}
