package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// SSEServer streams notifications as Server-Sent Events. Like
// WebSocketServer it is an http.Handler to be mounted on a router.
type SSEServer struct {
	clients map[chan []byte]bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewSSEServer creates a new SSE server
func NewSSEServer(logger *zap.Logger) *SSEServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSEServer{
		clients: make(map[chan []byte]bool),
		logger:  logger,
	}
}

func (s *SSEServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientChan := make(chan []byte, 100)
	s.addClient(clientChan)
	defer s.removeClient(clientChan)

	s.logger.Info("SSE client connected", zap.Int("clients", s.GetClientCount()))

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *SSEServer) addClient(ch chan []byte) {
	s.mu.Lock()
	s.clients[ch] = true
	s.mu.Unlock()
}

func (s *SSEServer) removeClient(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[ch]; exists {
		delete(s.clients, ch)
		close(ch)
		s.logger.Info("SSE client disconnected", zap.Int("clients", len(s.clients)))
	}
}

// Broadcast sends a notification to all connected clients. Slow clients
// miss notifications rather than stall the feed.
func (s *SSEServer) Broadcast(n Notification) error {
	if s.GetClientCount() == 0 {
		return nil
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Run broadcasts notifications from a channel until it closes or ctx is done.
func (s *SSEServer) Run(ctx context.Context, notifications <-chan Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			if err := s.Broadcast(n); err != nil {
				s.logger.Warn("broadcast error", zap.Error(err))
			}
		}
	}
}

// GetClientCount returns connected client count
func (s *SSEServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown disconnects every client.
func (s *SSEServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]bool)
}
