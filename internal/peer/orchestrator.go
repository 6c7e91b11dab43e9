package peer

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/session"
)

// DefaultNegotiationTimeout bounds how long a peer may take to connect.
const DefaultNegotiationTimeout = 30 * time.Second

// Options configures an Orchestrator.
type Options struct {
	Signaler Signaler
	Factory  LinkFactory
	// Source provides the local stream handed to every new link. Optional.
	Source media.Source
	// Sink receives remote streams. Optional.
	Sink               media.Sink
	NegotiationTimeout time.Duration
	Logger             *slog.Logger
}

// Orchestrator owns one PeerConnection per remote participant in the
// current room. Peers are independent: operations on one never wait for
// another.
type Orchestrator struct {
	signaler  Signaler
	factory   LinkFactory
	source    media.Source
	sink      media.Sink
	timeout   time.Duration
	logger    *slog.Logger
	observers *observers

	mu    sync.Mutex
	peers map[string]*PeerConnection
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.NegotiationTimeout <= 0 {
		opts.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		signaler:  opts.Signaler,
		factory:   opts.Factory,
		source:    opts.Source,
		sink:      opts.Sink,
		timeout:   opts.NegotiationTimeout,
		logger:    logger.With("component", "orchestrator"),
		observers: newObservers(),
		peers:     make(map[string]*PeerConnection),
	}
}

// Subscribe registers obs until the returned function is called.
func (o *Orchestrator) Subscribe(obs Observer) (unsubscribe func()) {
	return o.observers.subscribe(obs)
}

// HandleEvent routes a session event. It is meant to be passed to
// session.Client.Subscribe.
func (o *Orchestrator) HandleEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventState:
		if ev.State != session.StateConnected {
			o.CloseAllConnections()
		}
	case session.EventMessage:
		o.HandleMessage(ev.Message)
	}
}

// HandleMessage reacts to one relay message.
func (o *Orchestrator) HandleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeParticipantJoined:
		o.participantJoined(msg.ParticipantID, msg.Nickname, RoleInitiator)

	case protocol.TypeExistingParticipants:
		for _, p := range msg.Participants {
			o.participantJoined(p.ParticipantID, p.Nickname, RoleResponder)
		}

	case protocol.TypeParticipantLeft:
		if msg.ParticipantID == "" {
			return
		}
		o.CloseConnection(msg.ParticipantID)
		id := msg.ParticipantID
		o.observers.notify(func(obs Observer) { obs.ParticipantLeft(id) })

	case protocol.TypeRoomLeft:
		o.CloseAllConnections()

	case protocol.TypeSignal:
		if err := o.HandleSignal(msg.From, msg.Signal); err != nil {
			o.logger.Debug("signal not applied", "from", msg.From, "error", err)
		}
	}
}

func (o *Orchestrator) participantJoined(id, nickname string, role Role) {
	if id == "" {
		return
	}
	o.observers.notify(func(obs Observer) { obs.ParticipantJoined(id, nickname) })
	if err := o.CreateConnection(id, role); err != nil {
		o.logger.Warn("could not create peer connection", "peer_id", id, "error", err)
	}
}

// CreateConnection starts a link to peerID. A peer that already has a live
// record is rejected with ErrDuplicatePeer and the record is kept.
func (o *Orchestrator) CreateConnection(peerID string, role Role) error {
	pc := &PeerConnection{
		ID:        peerID,
		Role:      role,
		CreatedAt: time.Now(),
		orch:      o,
		state:     StateCreated,
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	o.mu.Lock()
	if _, exists := o.peers[peerID]; exists {
		o.mu.Unlock()
		return callerr.NewPeerError("create connection", peerID, callerr.ErrDuplicatePeer)
	}
	o.peers[peerID] = pc
	o.mu.Unlock()

	o.logger.Info("creating peer connection", "peer_id", peerID, "role", role)
	o.observers.notify(func(obs Observer) { obs.ConnectionStateChanged(peerID, StateCreated, nil) })

	var local *media.LocalStream
	if o.source != nil {
		if stream, ok := o.source.Stream(); ok {
			local = stream
		}
	}

	link, err := o.factory.NewLink(peerID, role, local, handler{pc: pc})
	if err != nil {
		err = callerr.NewPeerError("create connection", peerID, err)
		pc.fail(err)
		return err
	}
	pc.link = link
	pc.timer = time.AfterFunc(o.timeout, func() { o.negotiationTimedOut(pc) })

	if role == RoleInitiator {
		pc.setState(StateNegotiating, nil)
	}
	if err := link.Start(); err != nil {
		err = callerr.NewPeerError("start negotiation", peerID, err)
		pc.fail(err)
		return err
	}
	return nil
}

func (o *Orchestrator) negotiationTimedOut(pc *PeerConnection) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.timer == nil || pc.finished() || pc.state == StateConnected {
		return
	}
	pc.timer = nil
	pc.fail(callerr.NewPeerError("negotiate", pc.ID, callerr.ErrNegotiationTimeout))
}

// HandleSignal applies a relayed negotiation payload from peerID.
func (o *Orchestrator) HandleSignal(peerID string, raw json.RawMessage) error {
	payload, err := protocol.DecodeSignal(raw)
	if err != nil {
		o.logger.Warn("ignoring undecodable signal", "peer_id", peerID, "error", err)
		return callerr.WrapError("handle signal", callerr.ErrMalformedMessage, err.Error())
	}

	pc := o.lookup(peerID)
	if pc == nil {
		o.logger.Warn("signal from unknown peer", "peer_id", peerID, "type", payload.Type)
		return callerr.NewPeerError("handle signal", peerID, callerr.ErrUnknownPeer)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.finished() || pc.link == nil {
		return nil
	}
	if pc.state == StateCreated {
		pc.setState(StateNegotiating, nil)
	}
	if err := pc.link.ApplySignal(payload); err != nil {
		err = callerr.NewPeerError("apply "+payload.Type, peerID, err)
		pc.fail(err)
		return err
	}
	return nil
}

// SendControl sends msg to one connected peer.
func (o *Orchestrator) SendControl(peerID string, msg protocol.ControlMessage) error {
	pc := o.lookup(peerID)
	if pc == nil {
		o.logger.Warn("control message for unknown peer", "peer_id", peerID, "type", msg.Type)
		return callerr.NewPeerError("send control", peerID, callerr.ErrUnknownPeer)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	return o.sendControl(pc, msg, true)
}

// sendControl must be called with pc.mu held.
func (o *Orchestrator) sendControl(pc *PeerConnection, msg protocol.ControlMessage, warn bool) error {
	if pc.state != StateConnected || pc.link == nil || !pc.controlOpen {
		if warn {
			o.logger.Warn("peer not connected, dropping control message",
				"peer_id", pc.ID, "state", pc.state, "type", msg.Type)
		}
		return callerr.NewPeerError("send control", pc.ID, callerr.ErrNotConnected)
	}

	data, err := msg.Marshal()
	if err != nil {
		return callerr.NewPeerError("send control", pc.ID, err)
	}
	if err := pc.link.SendControl(data); err != nil {
		o.logger.Warn("sending control message", "peer_id", pc.ID, "error", err)
		return callerr.NewPeerError("send control", pc.ID, err)
	}
	return nil
}

// BroadcastMuteStatus tells every connected peer about the local mute
// state and returns how many were told.
func (o *Orchestrator) BroadcastMuteStatus(muted bool) int {
	msg, err := protocol.MuteStatus(muted)
	if err != nil {
		return 0
	}
	return o.broadcast(msg)
}

// BroadcastAudioLevel sends the local level to every connected peer and
// returns how many received it.
func (o *Orchestrator) BroadcastAudioLevel(level float64) int {
	msg, err := protocol.AudioLevel(level)
	if err != nil {
		return 0
	}
	return o.broadcast(msg)
}

func (o *Orchestrator) broadcast(msg protocol.ControlMessage) int {
	sent := 0
	for _, pc := range o.snapshot() {
		pc.mu.Lock()
		if o.sendControl(pc, msg, false) == nil {
			sent++
		}
		pc.mu.Unlock()
	}
	return sent
}

// CloseConnection tears down the link to peerID. Unknown or already closed
// peers are ignored.
func (o *Orchestrator) CloseConnection(peerID string) {
	pc := o.lookup(peerID)
	if pc == nil {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if !pc.finished() {
		o.logger.Info("closing peer connection", "peer_id", peerID)
	}
	pc.close()
}

// CloseAllConnections tears down every link.
func (o *Orchestrator) CloseAllConnections() {
	for _, pc := range o.snapshot() {
		pc.mu.Lock()
		pc.close()
		pc.mu.Unlock()
	}
}

// Close tears down every link and stops notifying observers once the
// pending notifications have been delivered.
func (o *Orchestrator) Close() {
	o.CloseAllConnections()
	o.observers.close()
}

// Peer returns a snapshot of the record for peerID.
func (o *Orchestrator) Peer(peerID string) (Info, bool) {
	pc := o.lookup(peerID)
	if pc == nil {
		return Info{}, false
	}
	return pc.info(), true
}

// Peers returns snapshots of every record, oldest first.
func (o *Orchestrator) Peers() []Info {
	pcs := o.snapshot()
	infos := make([]Info, 0, len(pcs))
	for _, pc := range pcs {
		infos = append(infos, pc.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

func (o *Orchestrator) lookup(peerID string) *PeerConnection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peers[peerID]
}

func (o *Orchestrator) snapshot() []*PeerConnection {
	o.mu.Lock()
	defer o.mu.Unlock()
	pcs := make([]*PeerConnection, 0, len(o.peers))
	for _, pc := range o.peers {
		pcs = append(pcs, pc)
	}
	return pcs
}

// forget removes pc from the map if it is still the current record.
func (o *Orchestrator) forget(pc *PeerConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.peers[pc.ID] == pc {
		delete(o.peers, pc.ID)
	}
}

type discardSink struct{}

func (discardSink) Attach(string, *media.RemoteStream) {}
func (discardSink) Detach(string)                      {}
