// Package notify publishes engine notifications to subscribers such as the
// websocket UI feed and the Kafka topic.
package notify

import (
	"time"
)

// Kind names a notification.
type Kind string

const (
	DeviceConnected        Kind = "device.connected"
	DeviceDisconnected     Kind = "device.disconnected"
	DeviceConnectionFailed Kind = "device.connection_failed"
	SampleAccepted         Kind = "sample.accepted"
	SampleRejected         Kind = "sample.rejected"
	NetworkChanged         Kind = "network.changed"
	SyncCompleted          Kind = "sync.completed"
	SyncFailed             Kind = "sync.failed"
	ScoreUpdated           Kind = "score.updated"
	WarningTransition      Kind = "warning.transition"
	WarningOpened          Kind = "warning.opened"
	WarningResolved        Kind = "warning.resolved"
	ResolutionRecorded     Kind = "resolution.recorded"
)

// Notification is one published event.
type Notification struct {
	Sequence uint64    `json:"sequence"`
	Kind     Kind      `json:"kind"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// Publisher accepts notifications without blocking.
type Publisher interface {
	Publish(kind Kind, payload any)
}

// Discard drops every notification.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Kind, any) {}
