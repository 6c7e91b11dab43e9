package protocol

import "testing"

func TestControlMessageValues(t *testing.T) {
	mute, err := MuteStatus(true)
	if err != nil {
		t.Fatalf("MuteStatus: %v", err)
	}
	data, err := mute.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed, err := ParseControl(data)
	if err != nil {
		t.Fatalf("ParseControl: %v", err)
	}
	if parsed.Type != ControlMuteStatus {
		t.Fatalf("type = %q", parsed.Type)
	}
	muted, err := parsed.Muted()
	if err != nil || !muted {
		t.Errorf("Muted() = %v, %v", muted, err)
	}
	if parsed.Timestamp == 0 {
		t.Error("expected a timestamp")
	}

	level, err := AudioLevel(0.25)
	if err != nil {
		t.Fatalf("AudioLevel: %v", err)
	}
	got, err := level.Level()
	if err != nil || got != 0.25 {
		t.Errorf("Level() = %v, %v", got, err)
	}
}

func TestParseControlRejectsGarbage(t *testing.T) {
	if _, err := ParseControl([]byte{0xc1}); err == nil {
		t.Error("expected an error for an invalid frame")
	}
}

func TestNewCallIDIsOrdered(t *testing.T) {
	a := NewCallID()
	b := NewCallID()
	if a == b {
		t.Fatal("call ids collided")
	}
	if a >= b {
		t.Errorf("expected monotonic ids, got %s then %s", a, b)
	}
}
