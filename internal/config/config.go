// Package config provides typed access to the orchestrator configuration
// stored in the config table.
package config

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
)

// Recognized configuration keys.
const (
	KeyExecutionMode          = "execution_mode"
	KeyModel                  = "model"
	KeyMaxRetries             = "max_retries"
	KeyMaxAgentTurns          = "max_agent_turns"
	KeyFeaturesPerLeadSession = "features_per_lead_session"
	KeyAutoMerge              = "auto_merge"
	KeySafeMode               = "safe_mode"
	KeyOpenSpecAutoArchive    = "openspec_auto_archive"
	KeyOpenSpecAutoImport     = "openspec_auto_import"
	KeyAgentCommand           = "agent_command"
)

// Execution modes.
const (
	ModeTeam         = "team"
	ModeOrchestrator = "orchestrator"
)

// Defaults returns the default value for every recognized key.
func Defaults() map[string]string {
	return map[string]string{
		KeyExecutionMode:          ModeOrchestrator,
		KeyModel:                  "",
		KeyMaxRetries:             "3",
		KeyMaxAgentTurns:          "30",
		KeyFeaturesPerLeadSession: "3",
		KeyAutoMerge:              "true",
		KeySafeMode:               "false",
		KeyOpenSpecAutoArchive:    "true",
		KeyOpenSpecAutoImport:     "false",
		KeyAgentCommand:           "claude",
	}
}

// Seed inserts default values for keys that are absent.
func Seed(db *sql.DB) error {
	for key, value := range Defaults() {
		if _, err := db.Exec(`INSERT OR IGNORE INTO config(key, value) VALUES(?, ?)`, key, value); err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}
	return nil
}

// Store reads and writes configuration values.
type Store struct {
	db        *sql.DB
	overrides map[string]string
}

// NewStore creates a config store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, overrides: map[string]string{}}
}

// Override shadows a key for this process only, without touching the
// stored value. Used for run-scoped CLI flags.
func (s *Store) Override(key, value string) {
	s.overrides[key] = value
}

// Get returns the value for a key, falling back to the default when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if value, ok := s.overrides[key]; ok {
		return value, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key=?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return Defaults()[key], nil
		}
		return "", fmt.Errorf("read config %s: %w", key, err)
	}
	return value, nil
}

// Set writes a key-value pair.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO config(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value); err != nil {
		return fmt.Errorf("write config %s: %w", key, err)
	}
	return nil
}

// All returns the full key-value snapshot sorted by key.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return out, nil
}

// Keys returns the recognized keys in sorted order.
func Keys() []string {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) intValue(ctx context.Context, key string) (int, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) boolValue(ctx context.Context, key string) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config %s: %w", key, err)
	}
	return b, nil
}

// ExecutionMode returns team or orchestrator.
func (s *Store) ExecutionMode(ctx context.Context) (string, error) {
	mode, err := s.Get(ctx, KeyExecutionMode)
	if err != nil {
		return "", err
	}
	if mode != ModeTeam && mode != ModeOrchestrator {
		return "", fmt.Errorf("config %s: unknown mode %q", KeyExecutionMode, mode)
	}
	return mode, nil
}

// Model returns the model identifier passed to the agent subprocess.
func (s *Store) Model(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyModel)
}

// AgentCommand returns the coding-agent binary name.
func (s *Store) AgentCommand(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyAgentCommand)
}

// MaxRetries returns the per-feature cycle cap before escalation.
func (s *Store) MaxRetries(ctx context.Context) (int, error) {
	return s.intValue(ctx, KeyMaxRetries)
}

// MaxAgentTurns returns the turn budget passed to the agent subprocess.
func (s *Store) MaxAgentTurns(ctx context.Context) (int, error) {
	return s.intValue(ctx, KeyMaxAgentTurns)
}

// FeaturesPerLeadSession returns the team-mode batch size.
func (s *Store) FeaturesPerLeadSession(ctx context.Context) (int, error) {
	return s.intValue(ctx, KeyFeaturesPerLeadSession)
}

// MergeAllowed reports whether autoplay may merge PRs. auto_merge=false and
// safe_mode=true are two spellings of the same operator intent.
func (s *Store) MergeAllowed(ctx context.Context) (bool, error) {
	autoMerge, err := s.boolValue(ctx, KeyAutoMerge)
	if err != nil {
		return false, err
	}
	safeMode, err := s.boolValue(ctx, KeySafeMode)
	if err != nil {
		return false, err
	}
	return autoMerge && !safeMode, nil
}

// OpenSpecAutoArchive reports whether completed changes should be archived.
func (s *Store) OpenSpecAutoArchive(ctx context.Context) (bool, error) {
	return s.boolValue(ctx, KeyOpenSpecAutoArchive)
}

// OpenSpecAutoImport reports whether autoplay imports active changes first.
func (s *Store) OpenSpecAutoImport(ctx context.Context) (bool, error) {
	return s.boolValue(ctx, KeyOpenSpecAutoImport)
}
