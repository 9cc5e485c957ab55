package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chanStream struct {
	ch   chan string
	once sync.Once
}

func (s *chanStream) Messages() <-chan string { return s.ch }

func (s *chanStream) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type fakeSubscriber struct {
	mu       sync.Mutex
	channels []string
	stream   *chanStream
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channels ...string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = channels
	return f.stream, nil
}

func encode(t *testing.T, m notify.Message) string {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestFeedDeliversUserAndRoleMessages(t *testing.T) {
	sub := &fakeSubscriber{stream: &chanStream{ch: make(chan string, 4)}}
	feed := NewFeed(sub, zerolog.Nop(), []string{"*"})
	id := models.Identity{UserID: "citizen-1", Role: models.RoleCitizen, Active: true}

	served := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served <- feed.Serve(w, r, id)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	sub.stream.ch <- encode(t, notify.Message{Type: models.NotificationBroadcast, Message: "officers only", Role: models.RoleOfficer})
	sub.stream.ch <- encode(t, notify.Message{Type: models.NotificationStatusUpdate, Message: "your grievance moved"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got notify.Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "your grievance moved", got.Message)

	assert.ElementsMatch(t, []string{"notifications:citizen-1", notify.BroadcastChannel}, sub.channels)

	require.NoError(t, conn.Close())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("feed did not stop after client disconnect")
	}
}

func TestDeliverable(t *testing.T) {
	assert.True(t, deliverable(`{"type":"broadcast","message":"hi"}`, models.RoleCitizen))
	assert.True(t, deliverable(`{"type":"broadcast","message":"hi","role":"admin"}`, models.RoleAdmin))
	assert.False(t, deliverable(`{"type":"broadcast","message":"hi","role":"admin"}`, models.RoleCitizen))
	assert.False(t, deliverable(`not json`, models.RoleCitizen))
}
