package peer

import (
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
)

// PeerConnection is the orchestrator's record for one remote participant.
// Every field below mu is guarded by it.
type PeerConnection struct {
	ID        string
	Role      Role
	CreatedAt time.Time

	orch *Orchestrator

	mu          sync.Mutex
	state       State
	link        Link
	remote      *media.RemoteStream
	controlOpen bool
	timer       *time.Timer
}

// Info is a snapshot of a PeerConnection.
type Info struct {
	ID          string
	Role        Role
	State       State
	HasStream   bool
	ControlOpen bool
	CreatedAt   time.Time
}

func (pc *PeerConnection) info() Info {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return Info{
		ID:          pc.ID,
		Role:        pc.Role,
		State:       pc.state,
		HasStream:   pc.remote != nil,
		ControlOpen: pc.controlOpen,
		CreatedAt:   pc.CreatedAt,
	}
}

// finished reports whether the record has been torn down. Must be called
// with pc.mu held.
func (pc *PeerConnection) finished() bool {
	return pc.state == StateClosed || pc.state == StateError
}

// setState records and announces a transition. Must be called with pc.mu
// held.
func (pc *PeerConnection) setState(s State, err error) {
	if pc.state == s {
		return
	}
	pc.state = s
	pc.announce(s, err)
}

func (pc *PeerConnection) announce(s State, err error) {
	pc.orch.logger.Debug("peer state changed", "peer_id", pc.ID, "state", s, "error", err)
	id := pc.ID
	pc.orch.observers.notify(func(o Observer) { o.ConnectionStateChanged(id, s, err) })
}

// fail moves the peer to Error and tears it down before announcing it.
// Other peers are not touched. Must be called with pc.mu held.
func (pc *PeerConnection) fail(err error) {
	if pc.finished() {
		return
	}
	pc.orch.logger.Warn("peer connection failed", "peer_id", pc.ID, "error", err)
	pc.state = StateError
	pc.teardown()
	pc.announce(StateError, err)
}

// close tears the peer down, then announces Closed. Must be called with
// pc.mu held.
func (pc *PeerConnection) close() {
	if pc.finished() {
		return
	}
	pc.state = StateClosed
	pc.teardown()
	pc.announce(StateClosed, nil)
}

// teardown releases everything the record holds. The negotiation timer goes
// first so it cannot fire into a half-closed record. Must be called with
// pc.mu held.
func (pc *PeerConnection) teardown() {
	if pc.timer != nil {
		pc.timer.Stop()
		pc.timer = nil
	}
	if pc.link != nil {
		if err := pc.link.Close(); err != nil {
			pc.orch.logger.Debug("closing link", "peer_id", pc.ID, "error", err)
		}
		pc.link = nil
	}
	if pc.remote != nil {
		pc.orch.sink.Detach(pc.ID)
		pc.remote = nil
	}
	pc.controlOpen = false
	pc.orch.forget(pc)
}

// handler adapts Link callbacks to the record. Callbacks that arrive after
// the record was torn down are dropped.
type handler struct {
	pc *PeerConnection
}

func (h handler) LocalSignal(payload protocol.SignalPayload) {
	pc := h.pc
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() {
		return
	}

	raw, err := payload.Encode()
	if err != nil {
		pc.orch.logger.Warn("encoding local signal", "peer_id", pc.ID, "error", err)
		return
	}
	if !pc.orch.signaler.SendSignal(pc.ID, raw) {
		pc.orch.logger.Warn("local signal dropped", "peer_id", pc.ID, "type", payload.Type)
	}
}

func (h handler) Connected() {
	pc := h.pc
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() || pc.state == StateConnected {
		return
	}
	if pc.timer != nil {
		pc.timer.Stop()
		pc.timer = nil
	}
	pc.orch.logger.Info("peer connected", "peer_id", pc.ID, "role", pc.Role)
	pc.setState(StateConnected, nil)
}

func (h handler) Failed(err error) {
	pc := h.pc
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if err == nil {
		pc.fail(callerr.NewError("link", callerr.ErrLinkFailed))
		return
	}
	pc.fail(callerr.WrapError("link", callerr.ErrLinkFailed, err.Error()))
}

func (h handler) Track(stream *media.RemoteStream) {
	pc := h.pc
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() {
		return
	}

	pc.remote = stream
	pc.orch.sink.Attach(pc.ID, stream)
	id := pc.ID
	pc.orch.observers.notify(func(o Observer) { o.StreamReceived(id, stream) })
}

func (h handler) ControlOpen() {
	pc := h.pc
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() {
		return
	}
	pc.controlOpen = true
}

func (h handler) Control(data []byte) {
	pc := h.pc
	msg, err := protocol.ParseControl(data)
	if err != nil {
		pc.orch.logger.Warn("ignoring undecodable control message", "peer_id", pc.ID, "error", err)
		return
	}
	switch msg.Type {
	case protocol.ControlMuteStatus:
		_, err = msg.Muted()
	case protocol.ControlAudioLevel:
		_, err = msg.Level()
	default:
		pc.orch.logger.Warn("ignoring unknown control message", "peer_id", pc.ID, "type", msg.Type)
		return
	}
	if err != nil {
		pc.orch.logger.Warn("ignoring control message with bad value", "peer_id", pc.ID, "type", msg.Type, "error", err)
		return
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() {
		return
	}
	id := pc.ID
	pc.orch.observers.notify(func(o Observer) { o.ControlReceived(id, msg) })
}
