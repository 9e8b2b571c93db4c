// Package chat delivers notifications to chat clients: directly over
// websockets, or through NATS to external bot workers.
package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tbot/pkg/notify"
)

// ErrOffline is returned when the recipient has no open session.
var ErrOffline = errors.New("chat: recipient offline")

// HubConfig tunes websocket sessions.
type HubConfig struct {
	WriteTimeout   time.Duration
	MaxMessageSize int64
	PingInterval   time.Duration
}

// DefaultHubConfig returns the settings used by the server.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		PingInterval:   30 * time.Second,
	}
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (s *session) write(deadline time.Time, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return fn()
}

// Hub keeps one websocket session per user and implements notify.Sender.
// A newer session for the same user replaces the older one.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[int64]*session
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultHubConfig().MaxMessageSize
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[int64]*session),
	}
}

// Online reports whether the user has an open session.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

// Serve upgrades the request and holds the session for userID until the
// client disconnects or ctx ends.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	s := &session{conn: conn}

	h.mu.Lock()
	if old, ok := h.sessions[userID]; ok {
		old.conn.Close()
	}
	h.sessions[userID] = s
	h.mu.Unlock()
	log.Printf("chat: user %d connected", userID)

	defer func() {
		h.mu.Lock()
		if h.sessions[userID] == s {
			delete(h.sessions, userID)
		}
		h.mu.Unlock()
		conn.Close()
		log.Printf("chat: user %d disconnected", userID)
	}()

	done := make(chan struct{})
	defer close(done)
	if h.cfg.PingInterval > 0 {
		go h.keepalive(s, done)
	}
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Clients only listen; reading drives control frames and detects closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	}
}

func (h *Hub) keepalive(s *session, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			err := s.write(deadline, func() error {
				return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
			})
			if err != nil {
				return
			}
		}
	}
}

// Send writes msg to the recipient's session as JSON.
func (h *Hub) Send(ctx context.Context, msg notify.Message) error {
	h.mu.RLock()
	s, ok := h.sessions[msg.Recipient]
	h.mu.RUnlock()
	if !ok {
		return ErrOffline
	}

	deadline := time.Now().Add(h.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return s.write(deadline, func() error { return s.conn.WriteJSON(msg) })
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
		delete(h.sessions, id)
	}
}
