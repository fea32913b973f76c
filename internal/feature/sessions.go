package feature

import (
	"context"
	"fmt"
)

// Session is one appended entry in the pipeline session log. The log is
// history only; correctness never depends on it.
type Session struct {
	RunID         string `json:"run_id"`
	SessionNumber int    `json:"session_number"`
	AgentRole     string `json:"agent_role"`
	FeatureID     string `json:"feature_id"`
	Outcome       string `json:"outcome"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"created_at"`
}

// AppendSession records a pipeline session entry.
func (s *Store) AppendSession(ctx context.Context, session Session) error {
	if session.CreatedAt == "" {
		session.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_sessions(run_id, session_number, agent_role, feature_id, outcome, notes, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		session.RunID, session.SessionNumber, session.AgentRole, session.FeatureID,
		session.Outcome, session.Notes, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecentSessions returns the newest session entries, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, session_number, agent_role, feature_id, outcome, notes, created_at
		FROM pipeline_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var entry Session
		if err := rows.Scan(&entry.RunID, &entry.SessionNumber, &entry.AgentRole, &entry.FeatureID,
			&entry.Outcome, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
