package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
)

// pairing control messages exchanged during the WebSocket handshake
type pairMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

const (
	msgPair      = "pair"
	msgPaired    = "paired"
	msgRejected  = "rejected"
	msgSubscribe = "subscribe"
)

// WebSocketDevice reads samples from a wearable bridge over WebSocket. The
// bridge answers a pair request on one connection; a subscribe request on
// another starts the stream of sample objects or HSI events.
type WebSocketDevice struct {
	URL    string
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// NewWebSocketDevice creates a device for the bridge at rawURL.
func NewWebSocketDevice(rawURL string, logger *zap.Logger) *WebSocketDevice {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketDevice{
		URL:    rawURL,
		Dialer: websocket.DefaultDialer,
		Logger: logger,
	}
}

func (d *WebSocketDevice) dial(ctx context.Context, info models.DeviceInfo) (*websocket.Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("device_id", info.ID)
	u.RawQuery = q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("X-Device-ID", info.ID)

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.URL, err)
	}
	return conn, nil
}

// Handshake implements Device.
func (d *WebSocketDevice) Handshake(ctx context.Context, info models.DeviceInfo) error {
	conn, err := d.dial(ctx, info)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := conn.WriteJSON(pairMessage{Type: msgPair, DeviceID: info.ID}); err != nil {
		return fmt.Errorf("failed to send pair request: %w", err)
	}

	var reply pairMessage
	if err := conn.ReadJSON(&reply); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to read pair reply: %w", err)
	}

	switch reply.Type {
	case msgPaired:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	case msgRejected:
		return fmt.Errorf("%w: %s", ErrPairingRejected, reply.Reason)
	default:
		return fmt.Errorf("unexpected pair reply %q", reply.Type)
	}
}

// Stream implements Device.
func (d *WebSocketDevice) Stream(ctx context.Context, info models.DeviceInfo, emit EmitFunc) error {
	conn, err := d.dial(ctx, info)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := conn.WriteJSON(pairMessage{Type: msgSubscribe, DeviceID: info.ID}); err != nil {
		return fmt.Errorf("failed to send subscribe request: %w", err)
	}

	logger := d.logger().With(zap.String("device_id", info.ID))
	logger.Info("websocket stream started", zap.String("url", d.URL))

	var asm Assembler
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket stream failed: %w", err)
		}

		sample, ok, err := asm.Feed(data)
		if err != nil {
			logger.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		if ok {
			emit(sample)
		}
	}
}

func (d *WebSocketDevice) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// closeOnDone unblocks pending reads on conn once ctx ends.
func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

var _ Device = (*WebSocketDevice)(nil)
