package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
)

const udpReadPoll = 100 * time.Millisecond

// UDPDevice receives sample datagrams from a phone bridge on the local
// network. The bridge pairs by sending "hello <device id>" and waits for
// "ok"; afterwards every datagram is a sample object or an HSI event.
type UDPDevice struct {
	Addr   string
	Logger *zap.Logger
}

// NewUDPDevice creates a device listening on addr, e.g. "0.0.0.0:9000".
func NewUDPDevice(addr string, logger *zap.Logger) *UDPDevice {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UDPDevice{Addr: addr, Logger: logger}
}

func (d *UDPDevice) listen() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return conn, nil
}

// readLoop polls conn until ctx ends so cancellation is observed promptly.
func readLoop(ctx context.Context, conn *net.UDPConn, handle func(data []byte, from *net.UDPAddr) bool) error {
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(udpReadPoll))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("udp read failed: %w", err)
		}
		if handle(buf[:n], from) {
			return nil
		}
	}
}

// Handshake implements Device.
func (d *UDPDevice) Handshake(ctx context.Context, info models.DeviceInfo) error {
	conn, err := d.listen()
	if err != nil {
		return err
	}
	defer conn.Close()

	want := "hello " + info.ID
	return readLoop(ctx, conn, func(data []byte, from *net.UDPAddr) bool {
		if strings.TrimSpace(string(data)) != want {
			return false
		}
		conn.WriteToUDP([]byte("ok"), from)
		return true
	})
}

// Stream implements Device.
func (d *UDPDevice) Stream(ctx context.Context, info models.DeviceInfo, emit EmitFunc) error {
	conn, err := d.listen()
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := d.Logger.With(zap.String("device_id", info.ID))
	logger.Info("udp stream started", zap.String("addr", conn.LocalAddr().String()))

	var asm Assembler
	return readLoop(ctx, conn, func(data []byte, from *net.UDPAddr) bool {
		if strings.HasPrefix(string(data), "hello ") {
			// bridge re-pairing after a restart
			conn.WriteToUDP([]byte("ok"), from)
			return false
		}
		sample, ok, err := asm.Feed(data)
		if err != nil {
			logger.Warn("dropping malformed datagram", zap.String("from", from.String()), zap.Error(err))
			return false
		}
		if ok {
			emit(sample)
		}
		return false
	})
}

var _ Device = (*UDPDevice)(nil)
