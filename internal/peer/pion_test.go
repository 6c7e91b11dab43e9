package peer

import (
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
)

// chanHandler forwards local descriptions to a channel and drops the rest.
type chanHandler struct {
	descriptions chan protocol.SignalPayload
}

func newChanHandler() *chanHandler {
	return &chanHandler{descriptions: make(chan protocol.SignalPayload, 4)}
}

func (h *chanHandler) LocalSignal(p protocol.SignalPayload) {
	if p.Type == protocol.SignalCandidate {
		return
	}
	h.descriptions <- p
}
func (h *chanHandler) Connected()                {}
func (h *chanHandler) Failed(error)              {}
func (h *chanHandler) Track(*media.RemoteStream) {}
func (h *chanHandler) ControlOpen()              {}
func (h *chanHandler) Control([]byte)            {}

func (h *chanHandler) next(t *testing.T) protocol.SignalPayload {
	t.Helper()
	select {
	case p := <-h.descriptions:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no local description produced")
		return protocol.SignalPayload{}
	}
}

func TestPionOfferAnswer(t *testing.T) {
	factory := NewPionFactory(PionOptions{Logger: quiet})
	src, err := media.NewSilenceSource("local")
	if err != nil {
		t.Fatal(err)
	}
	local, _ := src.Stream()

	h1, h2 := newChanHandler(), newChanHandler()
	initiator, err := factory.NewLink("p2", RoleInitiator, local, h1)
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	defer initiator.Close()
	responder, err := factory.NewLink("p1", RoleResponder, nil, h2)
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	defer responder.Close()

	// A candidate that beats the offer is held until the offer lands.
	mid, index := "0", uint16(0)
	early := &protocol.SignalPayload{Type: protocol.SignalCandidate, Candidate: &protocol.ICECandidate{
		Candidate:     "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}}
	if err := responder.ApplySignal(early); err != nil {
		t.Fatalf("early candidate: %v", err)
	}
	if pending := len(responder.(*pionLink).pending); pending != 1 {
		t.Fatalf("pending = %d, want 1", pending)
	}

	if err := initiator.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	offer := h1.next(t)
	if offer.Type != protocol.SignalOffer || offer.SDP == "" {
		t.Fatalf("offer = %+v", offer)
	}

	if err := responder.ApplySignal(&offer); err != nil {
		t.Fatalf("apply offer: %v", err)
	}
	if pending := len(responder.(*pionLink).pending); pending != 0 {
		t.Errorf("pending after offer = %d", pending)
	}
	answer := h2.next(t)
	if answer.Type != protocol.SignalAnswer {
		t.Fatalf("answer = %+v", answer)
	}
	if err := initiator.ApplySignal(&answer); err != nil {
		t.Fatalf("apply answer: %v", err)
	}

	if err := initiator.SendControl([]byte("x")); err == nil {
		t.Error("control send succeeded before the channel opened")
	}
}

func TestPionCloseIsIdempotent(t *testing.T) {
	link, err := NewPionFactory(PionOptions{Logger: quiet}).NewLink("p2", RoleResponder, nil, newChanHandler())
	if err != nil {
		t.Fatal(err)
	}
	if err := link.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := link.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
