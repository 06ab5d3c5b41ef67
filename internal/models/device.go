package models

import (
	"encoding/json"
	"fmt"
)

// DeviceInfo describes a paired biometric source.
type DeviceInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields required to pair a device.
func (d DeviceInfo) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return nil
}

// ConnectionState is the lifecycle state of the single paired device.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ConnectionState) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return fmt.Errorf("unknown connection state %q", v)
	}
	return nil
}

// NetworkState reports whether the remote sink is reachable.
type NetworkState int

const (
	Online NetworkState = iota
	Offline
)

func (s NetworkState) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

// ParseNetworkState accepts "online" or "offline".
func ParseNetworkState(v string) (NetworkState, error) {
	switch v {
	case "online":
		return Online, nil
	case "offline":
		return Offline, nil
	}
	return Online, &ValidationError{Field: "network", Message: "must be 'online' or 'offline'"}
}

func (s NetworkState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *NetworkState) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseNetworkState(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
