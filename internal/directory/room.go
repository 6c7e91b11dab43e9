package directory

import (
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/google/uuid"
)

// sendBuffer is the outbound queue size of a participant. A participant
// whose queue is full is treated as gone.
const sendBuffer = 256

// Participant is one connected endpoint. Its fields are owned by the hub
// goroutine once it has been registered.
type Participant struct {
	// ID is assigned at connection time and never reused.
	ID string

	Nickname string

	// RoomID is the room the participant is in, empty when in none.
	RoomID string

	// Send is the outbound queue. The write pump drains it and the
	// directory closes it when the participant is removed.
	Send chan *protocol.Message

	closed bool
}

// NewParticipant creates a participant with a fresh id and an empty queue.
func NewParticipant() *Participant {
	return &Participant{
		ID:   uuid.NewString(),
		Send: make(chan *protocol.Message, sendBuffer),
	}
}

// Room is a named group of participants. It only exists while non-empty.
type Room struct {
	ID string

	// members in join order.
	members []*Participant
}

func (r *Room) add(p *Participant) {
	r.members = append(r.members, p)
}

func (r *Room) remove(p *Participant) bool {
	for i, m := range r.members {
		if m == p {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the member list so callers can iterate while the room
// changes underneath them.
func (r *Room) snapshot() []*Participant {
	out := make([]*Participant, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) roster() []protocol.ParticipantInfo {
	out := make([]protocol.ParticipantInfo, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, protocol.ParticipantInfo{ParticipantID: m.ID, Nickname: m.Nickname})
	}
	return out
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}
