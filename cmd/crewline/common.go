package main

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/crewline/crewline/internal/db"
)

// openStore resolves the project root and opens the store under
// <root>/.framework/framework.db.
func openStore() (*sql.DB, string, func(), error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, "", func() {}, err
	}
	frameworkDir := filepath.Join(root, ".framework")
	if err := os.MkdirAll(frameworkDir, 0o755); err != nil {
		return nil, "", func() {}, err
	}
	storeDB, err := db.Open(filepath.Join(frameworkDir, "framework.db"))
	if err != nil {
		return nil, "", func() {}, err
	}
	return storeDB, root, func() { _ = storeDB.Close() }, nil
}
