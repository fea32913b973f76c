package feature

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const featureColumns = `id, category, description, notes, status,
	depends_on_json, requirements_json, architecture_compliance_json, verification_steps_json,
	assigned_to, reviewed_by, tested_by, passes,
	openspec_change_id, openspec_task_group, openspec_reference,
	created_at, updated_at`

// Store manages feature persistence. Dynamic arrays live as JSON strings in
// the row; serialization stays at this boundary.
type Store struct {
	db *sql.DB
}

// NewStore creates a feature store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(raw), nil
}

func scanFeature(scan func(dest ...any) error) (Feature, error) {
	var f Feature
	var dependsOn, requirements, compliance, verification string
	var passes int
	err := scan(&f.ID, &f.Category, &f.Description, &f.Notes, &f.Status,
		&dependsOn, &requirements, &compliance, &verification,
		&f.AssignedTo, &f.ReviewedBy, &f.TestedBy, &passes,
		&f.OpenSpecChangeID, &f.OpenSpecTaskGroup, &f.OpenSpecReference,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Feature{}, err
	}
	f.Passes = passes != 0
	lists := []struct {
		raw    string
		target *[]string
	}{
		{dependsOn, &f.DependsOn},
		{requirements, &f.Requirements},
		{compliance, &f.ArchitectureCompliance},
		{verification, &f.VerificationSteps},
	}
	for _, l := range lists {
		if err := json.Unmarshal([]byte(l.raw), l.target); err != nil {
			return Feature{}, fmt.Errorf("parse feature %s arrays: %w", f.ID, err)
		}
	}
	return f, nil
}

// CompareIDs orders feature ids with numeric suffixes sorted numerically,
// so FEAT-200 comes before FEAT-1000. Ids outside the FEAT-NNN shape fall
// back to lexical order.
func CompareIDs(a, b string) int {
	ma := idPattern.FindStringSubmatch(a)
	mb := idPattern.FindStringSubmatch(b)
	if ma != nil && mb != nil {
		na, _ := strconv.Atoi(ma[1])
		nb, _ := strconv.Atoi(mb[1])
		if na != nb {
			return cmp.Compare(na, nb)
		}
	}
	return strings.Compare(a, b)
}

// List returns features matching the filter, ordered by id.
func (s *Store) List(ctx context.Context, filter Filter) ([]Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, filter.AssignedTo)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()
	var out []Feature
	for rows.Next() {
		f, err := scanFeature(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	slices.SortFunc(out, func(a, b Feature) int { return CompareIDs(a.ID, b.ID) })
	return out, nil
}

// Get fetches a feature by id.
func (s *Store) Get(ctx context.Context, id string) (Feature, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id=?`, id)
	f, err := scanFeature(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return Feature{}, fmt.Errorf("feature %s not found", id)
		}
		return Feature{}, fmt.Errorf("read feature: %w", err)
	}
	return f, nil
}

// GetByChangeGroup fetches a feature by its openspec natural key. The bool
// reports presence.
func (s *Store) GetByChangeGroup(ctx context.Context, changeID string, group int) (Feature, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features
		WHERE openspec_change_id=? AND openspec_task_group=?`, changeID, group)
	f, err := scanFeature(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return Feature{}, false, nil
		}
		return Feature{}, false, fmt.Errorf("read feature by change group: %w", err)
	}
	return f, true, nil
}

// Create inserts a new feature. Empty status defaults to pending.
func (s *Store) Create(ctx context.Context, f Feature) (Feature, error) {
	if f.ID == "" {
		return Feature{}, fmt.Errorf("create feature: id is required")
	}
	if f.Status == "" {
		f.Status = StatusPending
	}
	if !f.Status.Valid() {
		return Feature{}, fmt.Errorf("create feature: invalid status %q", f.Status)
	}
	ts := now()
	if f.CreatedAt == "" {
		f.CreatedAt = ts
	}
	f.UpdatedAt = ts
	dependsOn, err := marshalList(f.DependsOn)
	if err != nil {
		return Feature{}, err
	}
	requirements, err := marshalList(f.Requirements)
	if err != nil {
		return Feature{}, err
	}
	compliance, err := marshalList(f.ArchitectureCompliance)
	if err != nil {
		return Feature{}, err
	}
	verification, err := marshalList(f.VerificationSteps)
	if err != nil {
		return Feature{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO features(`+featureColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Category, f.Description, f.Notes, f.Status,
		dependsOn, requirements, compliance, verification,
		f.AssignedTo, f.ReviewedBy, f.TestedBy, boolToInt(f.Passes),
		f.OpenSpecChangeID, f.OpenSpecTaskGroup, f.OpenSpecReference,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return Feature{}, fmt.Errorf("insert feature: %w", err)
	}
	return s.Get(ctx, f.ID)
}

// Update applies the allow-listed fields and bumps updated_at.
func (s *Store) Update(ctx context.Context, id string, update Update) (Feature, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+"=?")
		args = append(args, value)
	}
	if update.Category != nil {
		set("category", *update.Category)
	}
	if update.Description != nil {
		set("description", *update.Description)
	}
	if update.Notes != nil {
		set("notes", *update.Notes)
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return Feature{}, fmt.Errorf("update feature %s: invalid status %q", id, *update.Status)
		}
		set("status", *update.Status)
	}
	for column, value := range map[string]*[]string{
		"depends_on_json":              update.DependsOn,
		"requirements_json":            update.Requirements,
		"architecture_compliance_json": update.ArchitectureCompliance,
		"verification_steps_json":      update.VerificationSteps,
	} {
		if value == nil {
			continue
		}
		raw, err := marshalList(*value)
		if err != nil {
			return Feature{}, err
		}
		set(column, raw)
	}
	if update.AssignedTo != nil {
		set("assigned_to", *update.AssignedTo)
	}
	if update.ReviewedBy != nil {
		set("reviewed_by", *update.ReviewedBy)
	}
	if update.TestedBy != nil {
		set("tested_by", *update.TestedBy)
	}
	if update.Passes != nil {
		set("passes", boolToInt(*update.Passes))
	}
	if update.OpenSpecChangeID != nil {
		set("openspec_change_id", *update.OpenSpecChangeID)
	}
	if update.OpenSpecTaskGroup != nil {
		set("openspec_task_group", *update.OpenSpecTaskGroup)
	}
	if update.OpenSpecReference != nil {
		set("openspec_reference", *update.OpenSpecReference)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	set("updated_at", now())
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE features SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return Feature{}, fmt.Errorf("update feature: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Feature{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return Feature{}, fmt.Errorf("feature %s not found", id)
	}
	return s.Get(ctx, id)
}

// Delete removes a feature.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM features WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feature %s not found", id)
	}
	return nil
}

var idPattern = regexp.MustCompile(`^FEAT-(\d+)$`)

// NextID scans for the largest existing FEAT-NNN id and returns the next
// one, zero-padded to at least three digits. FEAT-001 when the store is
// empty.
func (s *Store) NextID(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM features`)
	if err != nil {
		return "", fmt.Errorf("query feature ids: %w", err)
	}
	defer rows.Close()
	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan feature id: %w", err)
		}
		m := idPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate feature ids: %w", err)
	}
	return fmt.Sprintf("FEAT-%03d", max+1), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
