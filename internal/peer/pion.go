package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// ControlLabel names the data channel that carries control messages.
const ControlLabel = "control"

var errControlNotOpen = errors.New("control channel not open")

// PionOptions configures PionFactory.
type PionOptions struct {
	ICEServers []webrtc.ICEServer
	// RelayOnly restricts ICE to TURN candidates.
	RelayOnly bool
	Logger    *slog.Logger
}

// PionFactory creates links backed by pion peer connections.
type PionFactory struct {
	config webrtc.Configuration
	logger *slog.Logger
}

func NewPionFactory(opts PionOptions) *PionFactory {
	policy := webrtc.ICETransportPolicyAll
	if opts.RelayOnly {
		policy = webrtc.ICETransportPolicyRelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PionFactory{
		config: webrtc.Configuration{
			ICEServers:         opts.ICEServers,
			ICETransportPolicy: policy,
		},
		logger: logger,
	}
}

// pionLink is a Link over one pion PeerConnection. Callbacks to the
// handler go through calls so pion's goroutines never wait on the
// orchestrator.
type pionLink struct {
	pc      *webrtc.PeerConnection
	peerID  string
	role    Role
	handler LinkHandler
	calls   *queue
	logger  *slog.Logger

	mu      sync.Mutex
	control *webrtc.DataChannel
	pending []webrtc.ICECandidateInit
	closed  bool
}

func (f *PionFactory) NewLink(peerID string, role Role, local *media.LocalStream, h LinkHandler) (Link, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	l := &pionLink{
		pc:      pc,
		peerID:  peerID,
		role:    role,
		handler: h,
		calls:   newQueue(),
		logger:  f.logger.With("peer_id", peerID),
	}

	if local != nil && local.Track != nil {
		sender, err := pc.AddTrack(local.Track)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add local track: %w", err)
		}
		go drainRTCP(sender)
	} else {
		_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add receive transceiver: %w", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		l.calls.push(func() {
			h.LocalSignal(protocol.SignalPayload{
				Type: protocol.SignalCandidate,
				Candidate: &protocol.ICECandidate{
					Candidate:        init.Candidate,
					SDPMid:           init.SDPMid,
					SDPMLineIndex:    init.SDPMLineIndex,
					UsernameFragment: init.UsernameFragment,
				},
			})
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.logger.Debug("peer connection state", "state", state)
		switch state {
		case webrtc.PeerConnectionStateConnected:
			l.calls.push(h.Connected)
		case webrtc.PeerConnectionStateFailed:
			l.calls.push(func() { h.Failed(errors.New("ice connection failed")) })
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		stream := media.NewRemoteStream(track)
		l.calls.push(func() { h.Track(stream) })
	})

	if role == RoleResponder {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != ControlLabel {
				l.logger.Warn("ignoring unexpected data channel", "label", dc.Label())
				return
			}
			l.bindControl(dc)
		})
	}

	return l, nil
}

// Start opens the control channel and sends the offer when initiating.
func (l *pionLink) Start() error {
	if l.role != RoleInitiator {
		return nil
	}

	ordered := true
	dc, err := l.pc.CreateDataChannel(ControlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	l.bindControl(dc)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	l.emitDescription(protocol.SignalOffer)
	return nil
}

func (l *pionLink) ApplySignal(p *protocol.SignalPayload) error {
	switch p.Type {
	case protocol.SignalOffer:
		if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		l.flushCandidates()

		answer, err := l.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := l.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		l.emitDescription(protocol.SignalAnswer)

	case protocol.SignalAnswer:
		if err := l.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		l.flushCandidates()

	case protocol.SignalCandidate:
		init := webrtc.ICECandidateInit{
			Candidate:        p.Candidate.Candidate,
			SDPMid:           p.Candidate.SDPMid,
			SDPMLineIndex:    p.Candidate.SDPMLineIndex,
			UsernameFragment: p.Candidate.UsernameFragment,
		}
		if l.pc.RemoteDescription() == nil {
			l.mu.Lock()
			l.pending = append(l.pending, init)
			l.mu.Unlock()
			return nil
		}
		if err := l.pc.AddICECandidate(init); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}

	default:
		return fmt.Errorf("unexpected signal type %q", p.Type)
	}
	return nil
}

func (l *pionLink) SendControl(data []byte) error {
	l.mu.Lock()
	dc := l.control
	l.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return errControlNotOpen
	}
	return dc.Send(data)
}

// Close shuts the peer connection. Queued callbacks still run and are
// discarded by the handler.
func (l *pionLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.pending = nil
	l.mu.Unlock()

	l.calls.close()
	return l.pc.Close()
}

func (l *pionLink) bindControl(dc *webrtc.DataChannel) {
	l.mu.Lock()
	l.control = dc
	l.mu.Unlock()

	dc.OnOpen(func() {
		l.calls.push(l.handler.ControlOpen)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := msg.Data
		l.calls.push(func() { l.handler.Control(data) })
	})
}

func (l *pionLink) emitDescription(kind string) {
	desc := l.pc.LocalDescription()
	if desc == nil {
		return
	}
	sdp := desc.SDP
	l.calls.push(func() {
		l.handler.LocalSignal(protocol.SignalPayload{Type: kind, SDP: sdp})
	})
}

// flushCandidates applies candidates that arrived before the remote
// description.
func (l *pionLink) flushCandidates() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			l.logger.Warn("dropping buffered ICE candidate", "error", err)
		}
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
