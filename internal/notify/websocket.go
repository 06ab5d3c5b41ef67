package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketServer broadcasts notifications to WebSocket clients. Mount it
// on a router; it does not listen on its own.
type WebSocketServer struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketServer{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("notification client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("clients", clientCount),
	)

	// Handle client disconnection
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()

		conn.Close()
		s.logger.Info("notification client disconnected", zap.Int("clients", clientCount))
	}()

	// Keep connection alive and discard client messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends a notification to all connected clients
func (s *WebSocketServer) Broadcast(n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			// Client will be cleaned up by the connection handler
			s.logger.Debug("failed to send to client", zap.Error(err))
		}
	}

	return nil
}

// Run broadcasts notifications from a channel until it closes or ctx is done.
func (s *WebSocketServer) Run(ctx context.Context, notifications <-chan Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return nil // Channel closed
			}
			if err := s.Broadcast(n); err != nil {
				s.logger.Warn("broadcast error", zap.Error(err))
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *WebSocketServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes all client connections.
func (s *WebSocketServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
}
