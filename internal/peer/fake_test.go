package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeNet stands in for both the relay and the media transport. Every
// delivery goes through one queue so the order is deterministic and no
// callback runs inside the call that caused it.
type fakeNet struct {
	calls *queue

	mu    sync.Mutex
	orchs map[string]*Orchestrator
	links map[string]*fakeLink
}

func newFakeNet(t *testing.T) *fakeNet {
	n := &fakeNet{
		calls: newQueue(),
		orchs: make(map[string]*Orchestrator),
		links: make(map[string]*fakeLink),
	}
	t.Cleanup(func() {
		n.calls.close()
		n.calls.wait()
	})
	return n
}

// join creates an orchestrator for participant id.
func (n *fakeNet) join(t *testing.T, id string, opts Options) *Orchestrator {
	if opts.Signaler == nil {
		opts.Signaler = &fakeSignaler{net: n, from: id}
	}
	if opts.Factory == nil {
		opts.Factory = &fakeFactory{net: n, owner: id}
	}
	opts.Logger = quiet
	o := NewOrchestrator(opts)

	n.mu.Lock()
	n.orchs[id] = o
	n.mu.Unlock()
	t.Cleanup(o.Close)
	return o
}

func (n *fakeNet) link(owner, peer string) *fakeLink {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.links[owner+">"+peer]
}

type fakeSignaler struct {
	net     *fakeNet
	from    string
	mu      sync.Mutex
	dropped bool
	sent    []json.RawMessage
}

func (s *fakeSignaler) SendSignal(to string, payload json.RawMessage) bool {
	s.mu.Lock()
	dropped := s.dropped
	s.sent = append(s.sent, payload)
	s.mu.Unlock()
	if dropped {
		return false
	}

	s.net.calls.push(func() {
		s.net.mu.Lock()
		target := s.net.orchs[to]
		s.net.mu.Unlock()
		if target != nil {
			target.HandleSignal(s.from, payload)
		}
	})
	return true
}

type fakeFactory struct {
	net   *fakeNet
	owner string
	err   error
}

func (f *fakeFactory) NewLink(peerID string, role Role, local *media.LocalStream, h LinkHandler) (Link, error) {
	if f.err != nil {
		return nil, f.err
	}
	l := &fakeLink{net: f.net, owner: f.owner, peer: peerID, role: role, handler: h}
	f.net.mu.Lock()
	f.net.links[f.owner+">"+peerID] = l
	f.net.mu.Unlock()
	return l, nil
}

// fakeLink connects as soon as the initiator applies the answer.
type fakeLink struct {
	net     *fakeNet
	owner   string
	peer    string
	role    Role
	handler LinkHandler

	mu         sync.Mutex
	closed     bool
	closeCalls int
	candidates int
	sentCtrl   int
}

func (l *fakeLink) Start() error {
	if l.role == RoleInitiator {
		l.net.calls.push(func() {
			l.handler.LocalSignal(protocol.SignalPayload{Type: protocol.SignalOffer, SDP: "offer from " + l.owner})
		})
	}
	return nil
}

func (l *fakeLink) ApplySignal(p *protocol.SignalPayload) error {
	switch p.Type {
	case protocol.SignalOffer:
		l.net.calls.push(func() {
			l.handler.LocalSignal(protocol.SignalPayload{Type: protocol.SignalAnswer, SDP: "answer from " + l.owner})
		})
	case protocol.SignalAnswer:
		remote := l.net.link(l.peer, l.owner)
		l.net.calls.push(func() {
			for _, side := range []*fakeLink{l, remote} {
				if side == nil {
					continue
				}
				side.handler.Connected()
				side.handler.ControlOpen()
				side.handler.Track(&media.RemoteStream{ID: "stream-" + side.peer, Codec: "audio/opus"})
			}
		})
	case protocol.SignalCandidate:
		l.mu.Lock()
		l.candidates++
		l.mu.Unlock()
	}
	return nil
}

func (l *fakeLink) SendControl(data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.sentCtrl++
	l.mu.Unlock()
	if closed {
		return errors.New("link closed")
	}

	remote := l.net.link(l.peer, l.owner)
	if remote == nil {
		return errors.New("no remote link")
	}
	l.net.calls.push(func() { remote.handler.Control(data) })
	return nil
}

func (l *fakeLink) closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCalls
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.closeCalls++
	return nil
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu     sync.Mutex
	events []string
	ctrl   []*protocol.ControlMessage
	errs   map[string]error
}

func newRecorder(o *Orchestrator) *recorder {
	r := &recorder{errs: make(map[string]error)}
	o.Subscribe(r)
	return r
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) ParticipantJoined(id, nickname string) { r.add("joined %s %s", id, nickname) }
func (r *recorder) ParticipantLeft(id string)             { r.add("left %s", id) }

func (r *recorder) ConnectionStateChanged(id string, s State, err error) {
	r.add("state %s %s", id, s)
	if err != nil {
		r.mu.Lock()
		r.errs[id] = err
		r.mu.Unlock()
	}
}

func (r *recorder) StreamReceived(id string, stream *media.RemoteStream) {
	r.add("stream %s", id)
}

func (r *recorder) ControlReceived(id string, msg *protocol.ControlMessage) {
	r.mu.Lock()
	r.ctrl = append(r.ctrl, msg)
	r.mu.Unlock()
	r.add("control %s %s", id, msg.Type)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) controls() []*protocol.ControlMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*protocol.ControlMessage(nil), r.ctrl...)
}

func (r *recorder) err(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[id]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connectedWithControl(o *Orchestrator, id string) func() bool {
	return func() bool {
		info, ok := o.Peer(id)
		return ok && info.State == StateConnected && info.ControlOpen && info.HasStream
	}
}

// pair connects p1 and p2 the way the relay would introduce them: p2 joins
// a room p1 is already in.
func pair(t *testing.T, n *fakeNet) (*Orchestrator, *Orchestrator) {
	t.Helper()
	o1 := n.join(t, "p1", Options{})
	o2 := n.join(t, "p2", Options{})

	o2.HandleMessage(protocol.ExistingParticipants([]protocol.ParticipantInfo{{ParticipantID: "p1", Nickname: "alice"}}))
	o1.HandleMessage(protocol.ParticipantJoined("p2", "bob"))

	waitFor(t, "p1 connected to p2", connectedWithControl(o1, "p2"))
	waitFor(t, "p2 connected to p1", connectedWithControl(o2, "p1"))
	return o1, o2
}
