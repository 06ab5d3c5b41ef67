// Package encoding serializes sample batches for the remote sink.
package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/synheart/synheart-guard/internal/models"
)

// Format represents the encoding format
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// ParseFormat validates a format name.
func ParseFormat(v string) (Format, error) {
	switch Format(v) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatProtobuf:
		return FormatProtobuf, nil
	}
	return "", fmt.Errorf("unknown encoding %q (want json or protobuf)", v)
}

// Batch is one delivery of queued samples.
type Batch struct {
	ID       string                   `json:"batch_id"`
	DeviceID string                   `json:"device_id,omitempty"`
	Samples  []models.BiometricSample `json:"samples"`
}

// Encoder encodes and decodes sample batches
type Encoder interface {
	Encode(batch Batch) ([]byte, error)
	Decode(data []byte) (Batch, error)
	ContentType() string
}

// JSONEncoder encodes batches as JSON
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(batch Batch) ([]byte, error) {
	if batch.Samples == nil {
		batch.Samples = []models.BiometricSample{}
	}
	return json.Marshal(batch)
}

func (e *JSONEncoder) Decode(data []byte) (Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return Batch{}, fmt.Errorf("failed to decode batch: %w", err)
	}
	return batch, nil
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

// NewEncoder creates an encoder for the given format
func NewEncoder(format Format) Encoder {
	switch format {
	case FormatProtobuf:
		return NewProtobufEncoder()
	default:
		return NewJSONEncoder()
	}
}

// ForContentType picks the decoder matching a Content-Type header.
func ForContentType(contentType string) Encoder {
	if contentType == NewProtobufEncoder().ContentType() {
		return NewProtobufEncoder()
	}
	return NewJSONEncoder()
}
