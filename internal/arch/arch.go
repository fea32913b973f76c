// Package arch copies architecture JSON documents between the project's
// architecture/ directory and the store. The payloads are opaque: agents
// consume them, the orchestrator never interprets them.
package arch

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Names of the recognized architecture documents.
var Names = []string{"principles", "patterns", "standards"}

// Store persists architecture blobs.
type Store struct {
	db *sql.DB
}

// NewStore creates an architecture store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Set stores a named blob.
func (s *Store) Set(ctx context.Context, name, dataJSON string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO architecture(name, data_json) VALUES(?, ?)
		ON CONFLICT(name) DO UPDATE SET data_json=excluded.data_json`, name, dataJSON)
	if err != nil {
		return fmt.Errorf("write architecture %s: %w", name, err)
	}
	return nil
}

// Get returns a named blob, or empty when absent.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data_json FROM architecture WHERE name=?`, name)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("read architecture %s: %w", name, err)
	}
	return data, nil
}

// Import copies <root>/architecture/<name>.json files into the store.
// Returns the names imported; missing files are skipped.
func (s *Store) Import(ctx context.Context, root string) ([]string, error) {
	dir := filepath.Join(root, "architecture")
	var imported []string
	for _, name := range Names {
		path := filepath.Join(dir, name+".json")
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return imported, fmt.Errorf("read %s: %w", path, err)
		}
		if err := s.Set(ctx, name, string(raw)); err != nil {
			return imported, err
		}
		imported = append(imported, name)
	}
	return imported, nil
}

// Export writes stored blobs back out as <root>/architecture/<name>.json.
func (s *Store) Export(ctx context.Context, root string) ([]string, error) {
	dir := filepath.Join(root, "architecture")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create architecture dir: %w", err)
	}
	var exported []string
	for _, name := range Names {
		data, err := s.Get(ctx, name)
		if err != nil {
			return exported, err
		}
		if data == "" {
			continue
		}
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return exported, fmt.Errorf("write %s: %w", path, err)
		}
		exported = append(exported, name)
	}
	return exported, nil
}
