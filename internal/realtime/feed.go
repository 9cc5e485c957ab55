// Package realtime pushes notifications to connected clients over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janmitra/backend/internal/models"
	"github.com/janmitra/backend/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var errClientGone = errors.New("client disconnected")

type Feed struct {
	Subscriber Subscriber
	Logger     zerolog.Logger
	Upgrader   websocket.Upgrader
}

func NewFeed(sub Subscriber, logger zerolog.Logger, allowedOrigins []string) *Feed {
	return &Feed{
		Subscriber: sub,
		Logger:     logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Serve upgrades the request and streams the user's notifications plus
// broadcasts addressed to their role until either side goes away.
func (f *Feed) Serve(w http.ResponseWriter, r *http.Request, id models.Identity) error {
	stream, err := f.Subscriber.Subscribe(r.Context(), notify.UserChannel(id.UserID), notify.BroadcastChannel)
	if err != nil {
		return err
	}
	defer stream.Close()

	conn, err := f.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := f.Logger.With().Str("user_id", id.UserID).Logger()
	log.Debug().Msg("realtime client connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return readPump(conn) })
	g.Go(func() error { return writePump(ctx, conn, stream.Messages(), id.Role) })
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})

	err = g.Wait()
	log.Debug().Msg("realtime client disconnected")
	if errors.Is(err, errClientGone) {
		return nil
	}
	return err
}

// readPump only services control frames; clients do not send data.
func readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return errClientGone
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, msgs <-chan string, role models.Role) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errClientGone
		case payload, ok := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return errClientGone
			}
			if !deliverable(payload, role) {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return errClientGone
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return errClientGone
			}
		}
	}
}

// deliverable filters role-targeted broadcasts; malformed payloads are dropped.
func deliverable(payload string, role models.Role) bool {
	var m notify.Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return false
	}
	return m.Role == "" || m.Role == role
}
