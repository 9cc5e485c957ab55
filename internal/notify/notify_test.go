package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/service"
)

type fakeStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	audit         []models.AuditEntry
	profiles      map[string]models.Profile
	insertErr     error
	auditErr      error
	broadcastN    int64
}

func (f *fakeStore) InsertNotification(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) InsertBroadcast(ctx context.Context, role models.Role, message string) (int64, error) {
	return f.broadcastN, nil
}

func (f *fakeStore) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return models.Profile{}, errors.New("not found")
	}
	return p, nil
}

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{channel, payload})
	return f.err
}

type fakeMailer struct {
	to []string
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.to = append(f.to, to)
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

func statusEvent() service.Event {
	tid := "JM-ABC123"
	return service.Event{
		Action:      service.ActionUpdateStatus,
		Actor:       &models.Identity{UserID: "officer-1", Email: "o@example.org", Role: models.RoleOfficer, Active: true},
		Grievance:   models.Grievance{ID: "g-1", UserID: "citizen-1", TrackingID: &tid},
		Status:      models.StatusResolved,
		Note:        "fixed",
		NotifyUsers: []string{"citizen-1"},
		Message:     "Your grievance JM-ABC123 is now resolved: fixed",
		Type:        models.NotificationStatusUpdate,
	}
}

func TestDispatcherDeliversEverySideEffect(t *testing.T) {
	store := &fakeStore{profiles: map[string]models.Profile{"citizen-1": {ID: "citizen-1", Email: "c@example.org"}}}
	pub := &fakePublisher{}
	mail := &fakeMailer{}
	d := &Dispatcher{Store: store, Publisher: pub, Mailer: mail, Logger: zerolog.Nop(), Now: fixedNow}

	d.GrievanceEvent(context.Background(), statusEvent())

	require.Len(t, store.audit, 1)
	assert.Equal(t, service.ActionUpdateStatus, store.audit[0].Action)
	assert.Equal(t, "officer-1", store.audit[0].ActorID)
	assert.Equal(t, "JM-ABC123", store.audit[0].Details["tracking_id"])

	require.Len(t, store.notifications, 1)
	assert.Equal(t, "citizen-1", store.notifications[0].UserID)
	assert.Equal(t, models.NotificationStatusUpdate, store.notifications[0].Type)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "notifications:citizen-1", pub.sent[0].channel)
	var m Message
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &m))
	assert.Equal(t, "Your grievance JM-ABC123 is now resolved: fixed", m.Message)

	assert.Equal(t, []string{"c@example.org"}, mail.to)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("db down"), auditErr: errors.New("db down")}
	pub := &fakePublisher{err: errors.New("redis down")}
	d := &Dispatcher{Store: store, Publisher: pub, Mailer: &fakeMailer{}, Logger: zerolog.Nop(), Now: fixedNow}

	assert.NotPanics(t, func() {
		d.GrievanceEvent(context.Background(), statusEvent())
	})
	assert.Len(t, pub.sent, 1)
}

func TestBroadcastPublishesOnce(t *testing.T) {
	store := &fakeStore{broadcastN: 3}
	pub := &fakePublisher{}
	d := &Dispatcher{Store: store, Publisher: pub, Logger: zerolog.Nop(), Now: fixedNow}

	n, err := d.Broadcast(context.Background(), "admin-1", models.RoleOfficer, "water outage tomorrow")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, BroadcastChannel, pub.sent[0].channel)
	require.Len(t, store.audit, 1)
	assert.Equal(t, "notification.broadcast", store.audit[0].Action)
}
