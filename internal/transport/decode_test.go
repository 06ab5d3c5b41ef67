package transport

import (
	"testing"
)

func TestAssembler_SampleObject(t *testing.T) {
	var asm Assembler
	raw, ok, err := asm.Feed([]byte(`{"heart_rate":72,"hrv":55,"stress_level":20,"timestamp":"2024-05-01T08:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete sample")
	}
	if *raw.HeartRate != 72 || *raw.HRV != 55 || *raw.StressLevel != 20 {
		t.Errorf("unexpected sample %+v", raw)
	}
	if raw.Timestamp != "2024-05-01T08:00:00Z" {
		t.Errorf("unexpected timestamp %s", raw.Timestamp)
	}
}

func TestAssembler_PartialSampleObjectPassesThrough(t *testing.T) {
	var asm Assembler
	raw, ok, err := asm.Feed([]byte(`{"heart_rate":72}`))
	if err != nil || !ok {
		t.Fatalf("expected sample to pass through, got ok=%v err=%v", ok, err)
	}
	if raw.HRV != nil {
		t.Error("expected missing HRV to stay nil for validation")
	}
}

func TestAssembler_CombinesEvents(t *testing.T) {
	var asm Assembler
	events := []string{
		`{"schema_version":"hsi.input.v1","ts":"2024-05-01T08:00:00Z","signal":{"name":"ppg.hr_bpm","value":80}}`,
		`{"schema_version":"hsi.input.v1","ts":"2024-05-01T08:00:00Z","signal":{"name":"screen.state","value":"on"}}`,
		`{"schema_version":"hsi.input.v1","ts":"2024-05-01T08:00:00Z","signal":{"name":"ppg.hrv_rmssd_ms","value":41}}`,
	}
	for _, e := range events {
		if _, ok, err := asm.Feed([]byte(e)); ok || err != nil {
			t.Fatalf("expected incomplete sample, got ok=%v err=%v", ok, err)
		}
	}

	raw, ok, err := asm.Feed([]byte(`{"schema_version":"hsi.input.v1","ts":"2024-05-01T08:00:01Z","signal":{"name":"stress.level","value":35}}`))
	if err != nil || !ok {
		t.Fatalf("expected complete sample, got ok=%v err=%v", ok, err)
	}
	if *raw.HeartRate != 80 || *raw.HRV != 41 || *raw.StressLevel != 35 {
		t.Errorf("unexpected sample %+v", raw)
	}
	if raw.Timestamp != "2024-05-01T08:00:01Z" {
		t.Errorf("expected timestamp of last event, got %s", raw.Timestamp)
	}

	// assembler resets after a complete sample
	if _, ok, _ := asm.Feed([]byte(`{"ts":"2024-05-01T08:00:02Z","signal":{"name":"ppg.hr_bpm","value":81}}`)); ok {
		t.Error("expected assembler to start a new sample")
	}
}

func TestAssembler_Malformed(t *testing.T) {
	var asm Assembler
	if _, _, err := asm.Feed([]byte(`{not json`)); err == nil {
		t.Error("expected decode error")
	}
	if _, ok, err := asm.Feed([]byte("  \n")); ok || err != nil {
		t.Error("expected blank message to be ignored")
	}
}
