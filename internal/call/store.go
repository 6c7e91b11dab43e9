package call

import (
	"sync"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/session"
)

// Member is one remote participant as the UI shows it.
type Member struct {
	ID        string
	Nickname  string
	State     peer.State
	Muted     bool
	Level     float64
	HasStream bool
	Err       error
}

// Snapshot is a copy of the Store's state.
type Snapshot struct {
	SessionState session.State
	SessionErr   error
	SelfID       string
	RoomID       string
	LocalMuted   bool
	Members      []Member
}

// Store keeps the call state the UI renders. It implements peer.Observer
// and consumes session events. Changes are signalled on a channel that
// holds at most one pending notification.
type Store struct {
	mu           sync.Mutex
	sessionState session.State
	sessionErr   error
	selfID       string
	roomID       string
	localMuted   bool
	members      map[string]*Member
	order        []string

	changed chan struct{}
}

var _ peer.Observer = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		members: make(map[string]*Member),
		changed: make(chan struct{}, 1),
	}
}

// Changes fires after one or more updates.
func (s *Store) Changes() <-chan struct{} {
	return s.changed
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionState: s.sessionState,
		SessionErr:   s.sessionErr,
		SelfID:       s.selfID,
		RoomID:       s.roomID,
		LocalMuted:   s.localMuted,
		Members:      make([]Member, 0, len(s.order)),
	}
	for _, id := range s.order {
		snap.Members = append(snap.Members, *s.members[id])
	}
	return snap
}

// HandleEvent records session state and room membership.
func (s *Store) HandleEvent(ev session.Event) {
	s.update(func() {
		switch ev.Kind {
		case session.EventState:
			s.sessionState = ev.State
			if ev.Err != nil || ev.State == session.StateConnected {
				s.sessionErr = ev.Err
			}
			if ev.State != session.StateConnected {
				s.clearRoom()
			}

		case session.EventMessage:
			msg := ev.Message
			switch msg.Type {
			case protocol.TypeConnected:
				s.selfID = msg.ParticipantID
			case protocol.TypeRoomJoined:
				s.roomID = msg.RoomID
				s.selfID = msg.ParticipantID
			case protocol.TypeRoomLeft:
				s.clearRoom()
			}
		}
	})
}

// SetLocalMuted records the local mute state.
func (s *Store) SetLocalMuted(muted bool) {
	s.update(func() { s.localMuted = muted })
}

// Reset forgets the room and its members.
func (s *Store) Reset() {
	s.update(s.clearRoom)
}

// ParticipantJoined adds a roster row. Joins queued from a room that has
// since been cleared are dropped.
func (s *Store) ParticipantJoined(peerID, nickname string) {
	s.update(func() {
		if s.roomID == "" {
			return
		}
		if m, ok := s.members[peerID]; ok {
			m.Nickname = nickname
			return
		}
		s.members[peerID] = &Member{ID: peerID, Nickname: nickname}
		s.order = append(s.order, peerID)
	})
}

func (s *Store) ParticipantLeft(peerID string) {
	s.update(func() {
		if _, ok := s.members[peerID]; !ok {
			return
		}
		delete(s.members, peerID)
		for i, id := range s.order {
			if id == peerID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
}

func (s *Store) ConnectionStateChanged(peerID string, state peer.State, err error) {
	s.update(func() {
		m, ok := s.members[peerID]
		if !ok {
			return
		}
		m.State = state
		m.Err = err
		if state == peer.StateClosed || state == peer.StateError {
			m.HasStream = false
			m.Level = 0
		}
	})
}

func (s *Store) StreamReceived(peerID string, _ *media.RemoteStream) {
	s.update(func() {
		if m, ok := s.members[peerID]; ok {
			m.HasStream = true
		}
	})
}

func (s *Store) ControlReceived(peerID string, msg *protocol.ControlMessage) {
	s.update(func() {
		m, ok := s.members[peerID]
		if !ok {
			return
		}
		switch msg.Type {
		case protocol.ControlMuteStatus:
			if muted, err := msg.Muted(); err == nil {
				m.Muted = muted
			}
		case protocol.ControlAudioLevel:
			if level, err := msg.Level(); err == nil {
				m.Level = clamp(level)
			}
		}
	})
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// clearRoom must be called with s.mu held.
func (s *Store) clearRoom() {
	s.roomID = ""
	s.members = make(map[string]*Member)
	s.order = nil
}

func clamp(level float64) float64 {
	switch {
	case level < 0:
		return 0
	case level > 1:
		return 1
	default:
		return level
	}
}
