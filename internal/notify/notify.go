// Package notify delivers the side effects of committed grievance transitions:
// audit rows, per-user notifications, realtime publishes and email.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/service"
)

const BroadcastChannel = "notifications:broadcast"

func UserChannel(userID string) string {
	return "notifications:" + userID
}

type Store interface {
	InsertNotification(ctx context.Context, n models.Notification) error
	InsertBroadcast(ctx context.Context, role models.Role, message string) (int64, error)
	AppendAudit(ctx context.Context, e models.AuditEntry) error
	GetProfile(ctx context.Context, id string) (models.Profile, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the realtime payload published for every notification.
type Message struct {
	ID        string                  `json:"id,omitempty"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Role      models.Role             `json:"role,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type Dispatcher struct {
	Store     Store
	Publisher Publisher
	Mailer    Mailer
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// GrievanceEvent never returns an error: every failure is logged and swallowed.
func (d *Dispatcher) GrievanceEvent(ctx context.Context, ev service.Event) {
	log := d.Logger.With().Str("action", ev.Action).Str("grievance_id", ev.Grievance.ID).Logger()
	if ev.Actor != nil {
		log = log.With().Str("actor_id", ev.Actor.UserID).Logger()
	}

	gid := ev.Grievance.ID
	entry := models.AuditEntry{
		ID:          uuid.NewString(),
		Action:      ev.Action,
		GrievanceID: &gid,
		Details: map[string]any{
			"status": ev.Status,
		},
		CreatedAt: d.now(),
	}
	if ev.Actor != nil {
		entry.ActorID = ev.Actor.UserID
		entry.Details["actor_email"] = ev.Actor.Email
	}
	if ev.Note != "" {
		entry.Details["note"] = ev.Note
	}
	if ev.Grievance.TrackingID != nil {
		entry.Details["tracking_id"] = *ev.Grievance.TrackingID
	}
	if err := d.Store.AppendAudit(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("audit append failed")
	}

	for _, userID := range ev.NotifyUsers {
		d.notifyUser(ctx, log, userID, ev.Type, ev.Message)
	}
}

func (d *Dispatcher) notifyUser(ctx context.Context, log zerolog.Logger, userID string, typ models.NotificationType, message string) {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Type:      typ,
		CreatedAt: d.now(),
	}
	if err := d.Store.InsertNotification(ctx, n); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("notification insert failed")
	}
	d.publish(ctx, log, UserChannel(userID), Message{ID: n.ID, Type: typ, Message: message, CreatedAt: n.CreatedAt})

	if d.Mailer == nil {
		return
	}
	p, err := d.Store.GetProfile(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("profile lookup for email failed")
		return
	}
	if p.Email == "" {
		return
	}
	if err := d.Mailer.Send(ctx, p.Email, "Jan-Mitra grievance update", message); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("email send failed")
	}
}

func (d *Dispatcher) publish(ctx context.Context, log zerolog.Logger, channel string, m Message) {
	if d.Publisher == nil {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Warn().Err(err).Msg("encode realtime payload")
		return
	}
	if err := d.Publisher.Publish(ctx, channel, b); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("realtime publish failed")
	}
}

// Broadcast stores the notifications (the primary write) and then publishes once on the broadcast channel.
func (d *Dispatcher) Broadcast(ctx context.Context, actorID string, role models.Role, message string) (int64, error) {
	n, err := d.Store.InsertBroadcast(ctx, role, message)
	if err != nil {
		return 0, err
	}
	log := d.Logger.With().Str("action", "broadcast").Str("actor_id", actorID).Logger()
	d.publish(ctx, log, BroadcastChannel, Message{Type: models.NotificationBroadcast, Message: message, Role: role, CreatedAt: d.now()})
	if err := d.Store.AppendAudit(ctx, models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    "notification.broadcast",
		Details:   map[string]any{"role": role, "recipients": n},
		CreatedAt: d.now(),
	}); err != nil {
		log.Warn().Err(err).Msg("audit append failed")
	}
	return n, nil
}
