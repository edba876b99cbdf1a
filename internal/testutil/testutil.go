// Package testutil provides a scripted research service for dossier tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Service is a WebSocket research service that answers every start message
// with the same frames. It is closed when the test completes.
type Service struct {
	server *httptest.Server

	mu     sync.Mutex
	paths  []string
	starts []map[string]any
}

// NewService starts a service that writes frames after the start message
// and then keeps the connection open until the client closes it.
func NewService(t *testing.T, frames ...string) *Service {
	t.Helper()

	s := &Service{}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var start map[string]any
		_ = json.Unmarshal(raw, &start)
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.starts = append(s.starts, start)
		s.mu.Unlock()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

// NewRejectingService starts a service that refuses the handshake with
// status.
func NewRejectingService(t *testing.T, status int) *Service {
	t.Helper()

	s := &Service{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(status), status)
	}))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the ws:// base URL of the service.
func (s *Service) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Paths returns the request path of every accepted connection.
func (s *Service) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Starts returns the decoded start message of every accepted connection.
func (s *Service) Starts() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.starts...)
}
