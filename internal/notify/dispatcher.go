package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dispatcher copies notifications to multiple subscribers.
// When a subscriber's buffer is full, notifications are dropped so the
// engine loop never blocks. Dropped notifications are logged and counted.
type Dispatcher struct {
	subscribers  []chan Notification
	bufferSize   int
	mu           sync.Mutex
	closed       bool
	sequence     uint64
	droppedTotal int64 // atomic counter for total dropped notifications
	now          func() time.Time
	logger       *zap.Logger
}

func NewDispatcher(bufferSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Dispatcher{
		subscribers: make([]chan Notification, 0),
		bufferSize:  bufferSize,
		now:         time.Now,
		logger:      logger,
	}
}

// Subscribe returns a channel that receives copies of all notifications
// published after the call. It is closed by Close.
func (d *Dispatcher) Subscribe() <-chan Notification {
	ch := make(chan Notification, d.bufferSize)
	d.mu.Lock()
	if d.closed {
		close(ch)
	} else {
		d.subscribers = append(d.subscribers, ch)
	}
	d.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (d *Dispatcher) Unsubscribe(ch <-chan Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, sub := range d.subscribers {
		if sub == ch {
			d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// GetSubscriberCount returns the current number of active subscribers.
func (d *Dispatcher) GetSubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

// GetDroppedCount returns the total number of notifications that were
// dropped due to subscriber buffers being full.
func (d *Dispatcher) GetDroppedCount() int64 {
	return atomic.LoadInt64(&d.droppedTotal)
}

// Publish stamps and fans out a notification.
func (d *Dispatcher) Publish(kind Kind, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.sequence++
	n := Notification{Sequence: d.sequence, Kind: kind, At: d.now().UTC(), Payload: payload}

	dropped := 0
	for _, sub := range d.subscribers {
		select {
		case sub <- n:
		default:
			// Buffer full - drop to keep the publisher non-blocking
			dropped++
			atomic.AddInt64(&d.droppedTotal, 1)
		}
	}

	if dropped > 0 {
		d.logger.Warn("notification dropped (buffer full)",
			zap.String("kind", string(kind)),
			zap.Uint64("sequence", n.Sequence),
			zap.Int("subscribers", dropped),
		)
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, sub := range d.subscribers {
		close(sub)
	}
	d.subscribers = nil
}
