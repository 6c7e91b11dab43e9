package protocol

import (
	"encoding/json"
	"fmt"
)

// Negotiation payload types carried inside a relayed signal.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalPayload represents the WebRTC signaling data (SDP offer/answer or ICE candidate).
// The relay never looks inside it.
type SignalPayload struct {
	Type      string        `json:"type"`
	SDP       string        `json:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate,omitempty"`
}

// ICECandidate mirrors the browser RTCIceCandidateInit JSON shape.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Encode returns the payload as raw JSON ready to be relayed.
func (p SignalPayload) Encode() (json.RawMessage, error) {
	return json.Marshal(p)
}

// DecodeSignal parses and validates a relayed negotiation payload.
func DecodeSignal(raw json.RawMessage) (*SignalPayload, error) {
	var p SignalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	switch p.Type {
	case SignalOffer, SignalAnswer:
		if p.SDP == "" {
			return nil, fmt.Errorf("%s without sdp", p.Type)
		}
	case SignalCandidate:
		if p.Candidate == nil {
			return nil, fmt.Errorf("candidate payload without candidate")
		}
	default:
		return nil, fmt.Errorf("unknown signal type %q", p.Type)
	}
	return &p, nil
}
