package db

import (
	"context"
	"encoding/json"

	"github.com/janmitra/backend/internal/models"
)

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Message, string(n.Type), n.Read, n.CreatedAt)
	return translate(err)
}

// InsertBroadcast writes one notification per active profile, optionally filtered by role.
func (s *Store) InsertBroadcast(ctx context.Context, role models.Role, message string) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, type, read, created_at)
		SELECT gen_random_uuid()::text, id, $1, 'broadcast', FALSE, NOW()
		FROM profiles
		WHERE is_active AND ($2 = '' OR role = $2)`,
		message, string(role))
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	limit, _ = PageBounds(limit, 0)
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, message, type, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n   models.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &typ, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, action, grievance_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.ID, e.ActorID, e.Action, e.GrievanceID, details, e.CreatedAt)
	return translate(err)
}
