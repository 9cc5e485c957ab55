package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/janmitra/backend/internal/models"
)

const grievanceColumns = `id, tracking_id, user_id, status, category, priority, location, description,
	department_id, assigned_officer_id, status_history, internal_notes, chat_history, extracted_data,
	latitude, longitude, created_at, updated_at, submitted_at`

func scanGrievance(row pgx.Row) (models.Grievance, error) {
	var (
		g         models.Grievance
		status    string
		category  string
		priority  string
		history   []byte
		chat      []byte
		extracted []byte
	)
	if err := row.Scan(
		&g.ID, &g.TrackingID, &g.UserID, &status, &category, &priority, &g.Location, &g.Description,
		&g.DepartmentID, &g.AssignedOfficerID, &history, &g.InternalNotes, &chat, &extracted,
		&g.Latitude, &g.Longitude, &g.CreatedAt, &g.UpdatedAt, &g.SubmittedAt,
	); err != nil {
		return models.Grievance{}, translate(err)
	}
	g.Status = models.Status(status)
	g.Category = models.Category(category)
	g.Priority = models.Priority(priority)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &g.StatusHistory); err != nil {
			return models.Grievance{}, fmt.Errorf("decode status_history: %w", err)
		}
	}
	if len(chat) > 0 {
		if err := json.Unmarshal(chat, &g.ChatHistory); err != nil {
			return models.Grievance{}, fmt.Errorf("decode chat_history: %w", err)
		}
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &g.ExtractedData); err != nil {
			return models.Grievance{}, fmt.Errorf("decode extracted_data: %w", err)
		}
	}
	if g.StatusHistory == nil {
		g.StatusHistory = []models.HistoryEntry{}
	}
	if g.InternalNotes == nil {
		g.InternalNotes = []string{}
	}
	return g, nil
}

// historyPatch encodes entries as a JSON array suitable for `status_history || $n::jsonb`.
func historyPatch(entries ...models.HistoryEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	return json.Marshal(entries)
}

func (s *Store) CreateGrievance(ctx context.Context, g models.Grievance) (models.Grievance, error) {
	history, err := json.Marshal(g.StatusHistory)
	if err != nil {
		return models.Grievance{}, err
	}
	chat, err := json.Marshal(g.ChatHistory)
	if err != nil {
		return models.Grievance{}, err
	}
	extracted, err := json.Marshal(g.ExtractedData)
	if err != nil {
		return models.Grievance{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO grievances (id, tracking_id, user_id, status, category, priority, location, description,
			department_id, assigned_officer_id, status_history, internal_notes, chat_history, extracted_data,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13::jsonb,$14::jsonb,$15,$16)
		RETURNING `+grievanceColumns,
		g.ID, g.TrackingID, g.UserID, string(g.Status), string(g.Category), string(g.Priority), g.Location, g.Description,
		g.DepartmentID, g.AssignedOfficerID, history, g.InternalNotes, chat, extracted, g.CreatedAt, g.UpdatedAt)
	return scanGrievance(row)
}

// UpdateDraft only touches rows that are still drafts owned by OwnerID.
func (s *Store) UpdateDraft(ctx context.Context, d DraftUpdate) (models.Grievance, error) {
	chat, err := json.Marshal(d.ChatHistory)
	if err != nil {
		return models.Grievance{}, err
	}
	extracted, err := json.Marshal(d.Extracted)
	if err != nil {
		return models.Grievance{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE grievances
		SET category = $3, priority = $4, location = $5, description = $6,
			chat_history = $7::jsonb, extracted_data = $8::jsonb, updated_at = $9
		WHERE id = $1 AND user_id = $2 AND status = 'draft'
		RETURNING `+grievanceColumns,
		d.ID, d.OwnerID, string(d.Category), string(d.Priority), d.Location, d.Description, chat, extracted, d.Now)
	return conditional(scanGrievance(row))
}

func (s *Store) GetGrievance(ctx context.Context, id string) (models.Grievance, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE id = $1`, id)
	return scanGrievance(row)
}

func (s *Store) GetGrievanceByTrackingID(ctx context.Context, code string) (models.Grievance, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE tracking_id = $1`, code)
	return scanGrievance(row)
}

// SubmitDraft moves an owned draft to pending. A tracking code collision surfaces as ErrDuplicate.
func (s *Store) SubmitDraft(ctx context.Context, sub Submission) (models.Grievance, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE grievances
		SET status = 'pending', tracking_id = $3, category = $4, priority = $5, location = $6,
			description = $7, department_id = $8, submitted_at = $9, updated_at = $9
		WHERE id = $1 AND user_id = $2 AND status = 'draft'
		RETURNING `+grievanceColumns,
		sub.ID, sub.OwnerID, sub.TrackingID, string(sub.Category), string(sub.Priority), sub.Location,
		sub.Description, sub.DepartmentID, sub.Now)
	return conditional(scanGrievance(row))
}

// ClaimGrievance is the compare-and-set behind officer self-assignment.
func (s *Store) ClaimGrievance(ctx context.Context, c Claim) (models.Grievance, error) {
	patch, err := historyPatch(c.Entry)
	if err != nil {
		return models.Grievance{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE grievances
		SET assigned_officer_id = $2, status = 'in_progress',
			status_history = status_history || $4::jsonb, updated_at = $5
		WHERE id = $1 AND status = 'pending' AND assigned_officer_id IS NULL AND department_id = $3
		RETURNING `+grievanceColumns,
		c.ID, c.OfficerID, c.DepartmentID, patch, c.Now)
	return conditional(scanGrievance(row))
}

// TransitionStatus writes status, history and internal note in one statement,
// guarded on the status the caller observed.
func (s *Store) TransitionStatus(ctx context.Context, t Transition) (models.Grievance, error) {
	patch, err := historyPatch(t.Entry)
	if err != nil {
		return models.Grievance{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE grievances
		SET status = $3,
			status_history = status_history || $4::jsonb,
			internal_notes = CASE WHEN $5::text = '' THEN internal_notes ELSE array_append(internal_notes, $5::text) END,
			updated_at = $6
		WHERE id = $1 AND status = $2 AND ($7::text IS NULL OR assigned_officer_id = $7::text)
		RETURNING `+grievanceColumns,
		t.ID, string(t.From), string(t.To), patch, t.Note, t.Now, t.OfficerID)
	return conditional(scanGrievance(row))
}

func (s *Store) OverrideGrievance(ctx context.Context, o Override) (models.Grievance, error) {
	var patch []byte
	if o.Entry != nil {
		var err error
		if patch, err = historyPatch(*o.Entry); err != nil {
			return models.Grievance{}, err
		}
	}
	var status *string
	if o.Status != nil {
		v := string(*o.Status)
		status = &v
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE grievances
		SET department_id = CASE WHEN $2::boolean THEN NULLIF($3::text, '') ELSE department_id END,
			assigned_officer_id = CASE WHEN $4::boolean THEN NULLIF($5::text, '') ELSE assigned_officer_id END,
			status = COALESCE($6::text, status),
			status_history = CASE WHEN $7::jsonb IS NULL THEN status_history ELSE status_history || $7::jsonb END,
			updated_at = $8
		WHERE id = $1
			AND status = $9
			AND department_id IS NOT DISTINCT FROM $10::text
			AND assigned_officer_id IS NOT DISTINCT FROM $11::text
		RETURNING `+grievanceColumns,
		o.ID, o.DepartmentID != nil, deref(o.DepartmentID), o.AssignedOfficerID != nil, deref(o.AssignedOfficerID),
		status, patch, o.Now, string(o.ExpectStatus), o.ExpectDepartment, o.ExpectOfficer)
	return conditional(scanGrievance(row))
}

// DeleteDraft returns ErrNotFound when no owned draft matched.
func (s *Store) DeleteDraft(ctx context.Context, id, ownerID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM grievances WHERE id = $1 AND user_id = $2 AND status = 'draft'`, id, ownerID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGrievance(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM grievances WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetLocationPoint(ctx context.Context, id string, lat, lon float64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE grievances SET latitude = $2, longitude = $3 WHERE id = $1`, id, lat, lon)
	return translate(err)
}

func (s *Store) ListGrievances(ctx context.Context, f GrievanceFilter) ([]models.Grievance, error) {
	f.Limit, f.Offset = PageBounds(f.Limit, f.Offset)

	query := `SELECT ` + grievanceColumns + ` FROM grievances`
	var args []any
	var wheres []string
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		wheres = append(wheres, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.QueueOfficerID != "" || f.QueueDepartmentID != "" {
		var queue []string
		if f.QueueDepartmentID != "" {
			args = append(args, f.QueueDepartmentID)
			queue = append(queue, fmt.Sprintf("department_id = $%d", len(args)))
		}
		if f.QueueOfficerID != "" {
			args = append(args, f.QueueOfficerID)
			queue = append(queue, fmt.Sprintf("assigned_officer_id = $%d", len(args)))
		}
		wheres = append(wheres, "("+strings.Join(queue, " OR ")+")")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.IncludeDrafts {
		wheres = append(wheres, "status <> 'draft'")
	}
	if f.DepartmentID != "" {
		args = append(args, f.DepartmentID)
		wheres = append(wheres, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if f.AssignedOfficerID != "" {
		args = append(args, f.AssignedOfficerID)
		wheres = append(wheres, fmt.Sprintf("assigned_officer_id = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []models.Grievance{}
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CountOpenAssignments counts pending or in-progress grievances assigned to the officer.
func (s *Store) CountOpenAssignments(ctx context.Context, officerID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM grievances
		WHERE assigned_officer_id = $1 AND status IN ('pending', 'in_progress')`, officerID).Scan(&n)
	return n, translate(err)
}

func (s *Store) GrievanceStats(ctx context.Context) (models.Stats, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT status, category, COUNT(*)
		FROM grievances
		WHERE status <> 'draft'
		GROUP BY status, category`)
	if err != nil {
		return models.Stats{}, translate(err)
	}
	defer rows.Close()

	st := models.Stats{ByStatus: map[models.Status]int{}, ByCategory: map[models.Category]int{}}
	for rows.Next() {
		var (
			status   string
			category string
			n        int
		)
		if err := rows.Scan(&status, &category, &n); err != nil {
			return models.Stats{}, err
		}
		st.ByStatus[models.Status(status)] += n
		st.ByCategory[models.Category(category)] += n
		st.Total += n
	}
	return st, rows.Err()
}

// conditional turns "no row returned" from a guarded UPDATE into ErrConflict.
func conditional(g models.Grievance, err error) (models.Grievance, error) {
	if errors.Is(err, ErrNotFound) {
		return models.Grievance{}, ErrConflict
	}
	return g, err
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
