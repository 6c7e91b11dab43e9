package protocol

import (
	"bytes"
	"encoding/json"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type          string            `json:"type"`
	RoomID        string            `json:"roomId,omitempty"`
	Nickname      string            `json:"nickname,omitempty"`
	ParticipantID string            `json:"participantId,omitempty"`
	Participants  []ParticipantInfo `json:"participants,omitempty"`
	To            string            `json:"to,omitempty"`
	From          string            `json:"from,omitempty"`
	CallID        string            `json:"callId,omitempty"`
	Signal        json.RawMessage   `json:"signal,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// ParticipantInfo is one roster entry in an existing-participants message.
type ParticipantInfo struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
}

// Client to server message types.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"
	TypeSignal    = "signal"
)

// Server to client message types. TypeSignal is shared by both directions.
const (
	TypeConnected            = "connected"
	TypeRoomJoined           = "room-joined"
	TypeRoomLeft             = "room-left"
	TypeParticipantJoined    = "participant-joined"
	TypeParticipantLeft      = "participant-left"
	TypeExistingParticipants = "existing-participants"
	TypeError                = "error"
)

// MarshalJSON keeps the participants array on existing-participants
// messages even when the roster is empty.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	if m.Type != TypeExistingParticipants {
		return marshal(alias(m))
	}
	participants := m.Participants
	if participants == nil {
		participants = []ParticipantInfo{}
	}
	return marshal(struct {
		alias
		Participants []ParticipantInfo `json:"participants"`
	}{alias(m), participants})
}

// Encode renders msg as one wire frame. The signal payload is copied in
// byte for byte; encoding/json would compact it and escape <, > and &.
func Encode(msg *Message) ([]byte, error) {
	envelope := *msg
	envelope.Signal = nil

	data, err := marshal(envelope)
	if err != nil {
		return nil, err
	}
	if len(msg.Signal) == 0 {
		return data, nil
	}

	// data is a JSON object with at least a type field.
	out := make([]byte, 0, len(data)+len(msg.Signal)+10)
	out = append(out, data[:len(data)-1]...)
	out = append(out, `,"signal":`...)
	out = append(out, msg.Signal...)
	out = append(out, '}')
	return out, nil
}

// marshal is json.Marshal without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a single wire message.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func Connected(participantID string) *Message {
	return &Message{Type: TypeConnected, ParticipantID: participantID}
}

func RoomJoined(roomID, participantID string) *Message {
	return &Message{Type: TypeRoomJoined, RoomID: roomID, ParticipantID: participantID}
}

func RoomLeft(roomID string) *Message {
	return &Message{Type: TypeRoomLeft, RoomID: roomID}
}

func ParticipantJoined(participantID, nickname string) *Message {
	return &Message{Type: TypeParticipantJoined, ParticipantID: participantID, Nickname: nickname}
}

func ParticipantLeft(participantID string) *Message {
	return &Message{Type: TypeParticipantLeft, ParticipantID: participantID}
}

func ExistingParticipants(participants []ParticipantInfo) *Message {
	return &Message{Type: TypeExistingParticipants, Participants: participants}
}

// RelayedSignal is what the target of a signal receives.
func RelayedSignal(from, callID string, signal json.RawMessage) *Message {
	return &Message{Type: TypeSignal, From: from, CallID: callID, Signal: signal}
}

func Error(message string) *Message {
	return &Message{Type: TypeError, Message: message}
}

func JoinRoom(roomID, nickname string) *Message {
	return &Message{Type: TypeJoinRoom, RoomID: roomID, Nickname: nickname}
}

func LeaveRoom() *Message {
	return &Message{Type: TypeLeaveRoom}
}

// OutboundSignal is what a client sends to have a payload relayed.
func OutboundSignal(to, callID string, signal json.RawMessage) *Message {
	return &Message{Type: TypeSignal, To: to, CallID: callID, Signal: signal}
}
