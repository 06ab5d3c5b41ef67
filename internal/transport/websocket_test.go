package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synheart/synheart-guard/internal/models"
)

// bridge is a fake wearable bridge.
type bridge struct {
	reject   string
	messages []string
	silent   bool
}

func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req pairMessage
	if err := conn.ReadJSON(&req); err != nil {
		return
	}
	if req.DeviceID != r.URL.Query().Get("device_id") {
		return
	}

	switch req.Type {
	case msgPair:
		if b.silent {
			conn.ReadMessage()
			return
		}
		if b.reject != "" {
			conn.WriteJSON(pairMessage{Type: msgRejected, Reason: b.reject})
			return
		}
		conn.WriteJSON(pairMessage{Type: msgPaired})
		conn.ReadMessage()
	case msgSubscribe:
		for _, m := range b.messages {
			conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		conn.ReadMessage()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/hsi"
}

func TestWebSocketDevice_Handshake(t *testing.T) {
	srv := httptest.NewServer(&bridge{})
	defer srv.Close()

	dev := NewWebSocketDevice(wsURL(srv), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := dev.Handshake(ctx, band); err != nil {
		t.Fatalf("expected pairing to succeed, got %v", err)
	}
}

func TestWebSocketDevice_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(&bridge{reject: "unknown device"})
	defer srv.Close()

	dev := NewWebSocketDevice(wsURL(srv), nil)
	err := dev.Handshake(context.Background(), band)
	if !errors.Is(err, ErrPairingRejected) {
		t.Fatalf("expected ErrPairingRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown device") {
		t.Errorf("expected reason in error, got %v", err)
	}
}

func TestWebSocketDevice_HandshakeTimeout(t *testing.T) {
	srv := httptest.NewServer(&bridge{silent: true})
	defer srv.Close()

	dev := NewWebSocketDevice(wsURL(srv), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := dev.Handshake(ctx, band); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWebSocketDevice_Stream(t *testing.T) {
	srv := httptest.NewServer(&bridge{messages: []string{
		`{"heart_rate":70,"hrv":50,"stress_level":20,"timestamp":"2024-05-01T08:00:00Z"}`,
		`garbage`,
		`{"ts":"2024-05-01T08:00:05Z","signal":{"name":"ppg.hr_bpm","value":90}}`,
		`{"ts":"2024-05-01T08:00:05Z","signal":{"name":"ppg.hrv_rmssd_ms","value":30}}`,
		`{"ts":"2024-05-01T08:00:05Z","signal":{"name":"stress.level","value":70}}`,
	}})
	defer srv.Close()

	dev := NewWebSocketDevice(wsURL(srv), nil)

	var mu sync.Mutex
	var got []models.RawSample
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := dev.Stream(ctx, band, func(s models.RawSample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("expected clean end of stream, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if *got[1].StressLevel != 70 {
		t.Errorf("expected assembled stress 70, got %v", *got[1].StressLevel)
	}
}

func TestWebSocketDevice_DialFailure(t *testing.T) {
	dev := NewWebSocketDevice("ws://127.0.0.1:1/hsi", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dev.Handshake(ctx, band); err == nil {
		t.Error("expected dial error")
	}
}
