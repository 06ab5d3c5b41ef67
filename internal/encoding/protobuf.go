package encoding

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/synheart/synheart-guard/internal/models"
)

// ProtobufEncoder encodes batches as a google.protobuf.Struct.
type ProtobufEncoder struct{}

func NewProtobufEncoder() *ProtobufEncoder {
	return &ProtobufEncoder{}
}

func (e *ProtobufEncoder) Encode(batch Batch) ([]byte, error) {
	pb, err := batchToProto(batch)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

func (e *ProtobufEncoder) Decode(data []byte) (Batch, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return Batch{}, fmt.Errorf("failed to decode batch: %w", err)
	}
	return batchFromProto(&pb)
}

func (e *ProtobufEncoder) ContentType() string {
	return "application/x-protobuf"
}

func batchToProto(b Batch) (*structpb.Struct, error) {
	samples := make([]any, 0, len(b.Samples))
	for _, s := range b.Samples {
		samples = append(samples, map[string]any{
			"heart_rate":   s.HeartRate,
			"hrv":          s.HRV,
			"stress_level": s.StressLevel,
			"timestamp":    s.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	pb, err := structpb.NewStruct(map[string]any{
		"batch_id":  b.ID,
		"device_id": b.DeviceID,
		"samples":   samples,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build batch message: %w", err)
	}
	return pb, nil
}

func batchFromProto(pb *structpb.Struct) (Batch, error) {
	fields := pb.GetFields()
	b := Batch{
		ID:       fields["batch_id"].GetStringValue(),
		DeviceID: fields["device_id"].GetStringValue(),
		Samples:  []models.BiometricSample{},
	}
	for i, v := range fields["samples"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		ts, err := time.Parse(time.RFC3339Nano, sf["timestamp"].GetStringValue())
		if err != nil {
			return Batch{}, fmt.Errorf("sample %d: invalid timestamp: %w", i, err)
		}
		b.Samples = append(b.Samples, models.BiometricSample{
			HeartRate:   int(sf["heart_rate"].GetNumberValue()),
			HRV:         int(sf["hrv"].GetNumberValue()),
			StressLevel: int(sf["stress_level"].GetNumberValue()),
			Timestamp:   ts,
		})
	}
	return b, nil
}
