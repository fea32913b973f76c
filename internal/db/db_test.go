package db_test

import (
	"path/filepath"
	"testing"

	"github.com/crewline/crewline/internal/db"
)

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "framework.db")

	first, err := db.Open(path)
	if err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := db.Open(path)
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	defer second.Close()

	var count int
	if err := second.QueryRow(`SELECT COUNT(*) FROM features`).Scan(&count); err != nil {
		t.Fatalf("features table missing after reopen: %v", err)
	}
}

func TestOpenSeedsConfigDefaults(t *testing.T) {
	t.Parallel()
	handle, err := db.Open(filepath.Join(t.TempDir(), "framework.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer handle.Close()

	var mode string
	if err := handle.QueryRow(`SELECT value FROM config WHERE key='execution_mode'`).Scan(&mode); err != nil {
		t.Fatalf("execution_mode not seeded: %v", err)
	}
	if mode != "orchestrator" {
		t.Fatalf("execution_mode = %q, want orchestrator", mode)
	}
}

func TestTouchTriggerBumpsUpdatedAt(t *testing.T) {
	t.Parallel()
	handle, err := db.Open(filepath.Join(t.TempDir(), "framework.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer handle.Close()

	stale := "2020-01-01T00:00:00Z"
	_, err = handle.Exec(`INSERT INTO features(id, created_at, updated_at) VALUES('FEAT-001', ?, ?)`, stale, stale)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A raw write that forgets updated_at still gets a fresh timestamp.
	if _, err := handle.Exec(`UPDATE features SET status='in-dev' WHERE id='FEAT-001'`); err != nil {
		t.Fatalf("update: %v", err)
	}
	var updatedAt string
	if err := handle.QueryRow(`SELECT updated_at FROM features WHERE id='FEAT-001'`).Scan(&updatedAt); err != nil {
		t.Fatalf("read updated_at: %v", err)
	}
	if updatedAt == stale {
		t.Fatal("updated_at not bumped by trigger")
	}
}

func TestOpenSpecKeyIsUnique(t *testing.T) {
	t.Parallel()
	handle, err := db.Open(filepath.Join(t.TempDir(), "framework.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer handle.Close()

	insert := `INSERT INTO features(id, created_at, updated_at, openspec_change_id, openspec_task_group)
		VALUES(?, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z', ?, ?)`
	if _, err := handle.Exec(insert, "FEAT-001", "add-login", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := handle.Exec(insert, "FEAT-002", "add-login", 1); err == nil {
		t.Fatal("duplicate (change, group) key accepted")
	}
	// Manual features without a change id never collide.
	if _, err := handle.Exec(insert, "FEAT-003", "", 0); err != nil {
		t.Fatalf("insert manual feature: %v", err)
	}
	if _, err := handle.Exec(insert, "FEAT-004", "", 0); err != nil {
		t.Fatalf("insert second manual feature: %v", err)
	}
}
