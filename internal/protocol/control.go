package protocol

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Control message types exchanged over the peer data channel.
const (
	ControlMuteStatus = "mute-status"
	ControlAudioLevel = "audio-level"
)

// ControlMessage represents all data channel messages between connected peers.
type ControlMessage struct {
	Type      string             `msgpack:"type"`
	Value     msgpack.RawMessage `msgpack:"value"`
	Timestamp int64              `msgpack:"timestamp"`
}

// NewControlMessage creates a control message stamped with the current time
// in unix milliseconds.
func NewControlMessage(t string, value any) (ControlMessage, error) {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return ControlMessage{}, err
	}

	return ControlMessage{
		Type:      t,
		Value:     b,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func MuteStatus(muted bool) (ControlMessage, error) {
	return NewControlMessage(ControlMuteStatus, muted)
}

func AudioLevel(level float64) (ControlMessage, error) {
	return NewControlMessage(ControlAudioLevel, level)
}

// DecodeValue decodes the message value into the provided pointer.
func (m ControlMessage) DecodeValue(v any) error {
	return msgpack.Unmarshal(m.Value, v)
}

// Muted returns the value of a mute-status message.
func (m ControlMessage) Muted() (bool, error) {
	var muted bool
	err := m.DecodeValue(&muted)
	return muted, err
}

// Level returns the value of an audio-level message.
func (m ControlMessage) Level() (float64, error) {
	var level float64
	err := m.DecodeValue(&level)
	return level, err
}

// Marshal encodes the message for the data channel.
func (m ControlMessage) Marshal() ([]byte, error) {
	return msgpack.Marshal(m)
}

// ParseControl decodes a data channel frame.
func ParseControl(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
