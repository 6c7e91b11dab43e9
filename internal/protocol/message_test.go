package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExistingParticipantsAlwaysCarriesArray(t *testing.T) {
	data, err := json.Marshal(ExistingParticipants(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"participants":[]`) {
		t.Errorf("expected empty participants array, got %s", data)
	}
}

func TestOtherMessagesOmitParticipants(t *testing.T) {
	data, err := json.Marshal(ParticipantLeft("p1"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "participants") {
		t.Errorf("participant-left should not carry a roster: %s", data)
	}
	if string(data) != `{"type":"participant-left","participantId":"p1"}` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestRelayedSignalKeepsPayload(t *testing.T) {
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	data, err := json.Marshal(RelayedSignal("a", "", payload))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.From != "a" || string(msg.Signal) != string(payload) {
		t.Errorf("got from=%q signal=%s", msg.From, msg.Signal)
	}
}

func TestDecodeSignal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"offer", `{"type":"offer","sdp":"v=0"}`, false},
		{"answer", `{"type":"answer","sdp":"v=0"}`, false},
		{"candidate", `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host"}}`, false},
		{"offer without sdp", `{"type":"offer"}`, true},
		{"candidate without body", `{"type":"candidate"}`, true},
		{"unknown type", `{"type":"renegotiate"}`, true},
		{"not json", `nope`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSignal(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeSignal(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestEncodeKeepsSignalBytes(t *testing.T) {
	payload := json.RawMessage("{\n  \"type\": \"offer\",\n  \"sdp\": \"v=0 <x> & y\"\n}")

	data, err := Encode(RelayedSignal("a", "01CALL", payload))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasSuffix(string(data), `,"signal":`+string(payload)+"}") {
		t.Errorf("payload not copied verbatim: %s", data)
	}

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s): %v", data, err)
	}
	if msg.Type != TypeSignal || msg.From != "a" || msg.CallID != "01CALL" {
		t.Errorf("envelope = %+v", msg)
	}
	if string(msg.Signal) != string(payload) {
		t.Errorf("signal = %s, want %s", msg.Signal, payload)
	}
}

func TestEncodeWithoutSignal(t *testing.T) {
	data, err := Encode(ExistingParticipants(nil))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != `{"type":"existing-participants","participants":[]}` {
		t.Errorf("Encode = %s", data)
	}

	data, err = Encode(JoinRoom("r&d", "<alice>"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"roomId":"r&d"`) || !strings.Contains(string(data), `"nickname":"<alice>"`) {
		t.Errorf("Encode escaped text fields: %s", data)
	}
}
