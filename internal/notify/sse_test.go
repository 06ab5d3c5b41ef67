package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEServer_Broadcast(t *testing.T) {
	server := NewSSEServer(nil)
	srv := httptest.NewServer(server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("wrong content type: %s", resp.Header.Get("Content-Type"))
	}

	deadline := time.Now().Add(time.Second)
	for server.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.GetClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", server.GetClientCount())
	}

	if err := server.Broadcast(Notification{Sequence: 3, Kind: SyncCompleted}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("expected data line, got %q", line)
	}

	var n Notification
	if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))), &n); err != nil {
		t.Fatalf("invalid notification json: %v", err)
	}
	if n.Kind != SyncCompleted || n.Sequence != 3 {
		t.Errorf("unexpected notification %+v", n)
	}

	server.Shutdown()
	if server.GetClientCount() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", server.GetClientCount())
	}
}

func TestSSEServer_BroadcastWithoutClients(t *testing.T) {
	server := NewSSEServer(nil)
	if err := server.Broadcast(Notification{Kind: ScoreUpdated}); err != nil {
		t.Errorf("expected nil error without clients, got %v", err)
	}
}
