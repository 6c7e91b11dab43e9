package directory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/BioHazard786/huddle/internal/protocol"
)

const (
	maxRoomIDLength   = 128
	maxNicknameLength = 64
	defaultNickname   = "anonymous"
)

// Stats is a point-in-time view of the directory.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

// Directory is the arena of rooms and participants. It is not safe for
// concurrent use: the Hub goroutine is its only caller.
type Directory struct {
	rooms        map[string]*Room
	participants map[string]*Participant
	metrics      *Metrics
	logger       *slog.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(metrics *Metrics, logger *slog.Logger) *Directory {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		rooms:        make(map[string]*Room),
		participants: make(map[string]*Participant),
		metrics:      metrics,
		logger:       logger,
	}
}

// Connect registers a participant and tells it its id.
func (d *Directory) Connect(p *Participant) {
	d.participants[p.ID] = p
	d.metrics.Participants.Set(float64(len(d.participants)))
	d.logger.Info("participant connected", "participant_id", p.ID)

	if !d.deliver(p, protocol.Connected(p.ID)) {
		d.evict(p)
	}
}

// Disconnect removes a participant from its room and from the directory,
// then closes its queue. Unknown ids are ignored.
func (d *Directory) Disconnect(id string) {
	p, ok := d.participants[id]
	if !ok {
		return
	}

	d.leave(p, false)

	delete(d.participants, id)
	d.metrics.Participants.Set(float64(len(d.participants)))
	if !p.closed {
		p.closed = true
		close(p.Send)
	}
	d.logger.Info("participant disconnected", "participant_id", id)
}

// Handle processes one inbound message from p. Messages from participants
// that are no longer registered are discarded.
func (d *Directory) Handle(p *Participant, msg *protocol.Message) {
	if d.participants[p.ID] != p {
		return
	}
	if msg == nil {
		d.protocolError(p, "malformed message")
		return
	}

	switch msg.Type {
	case protocol.TypeJoinRoom:
		d.Join(p, msg.RoomID, msg.Nickname)

	case protocol.TypeLeaveRoom:
		d.Leave(p)

	case protocol.TypeSignal:
		d.Relay(p, msg.To, msg.CallID, msg.Signal)

	case "":
		d.protocolError(p, "message type is required")

	default:
		d.protocolError(p, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// Malformed answers an inbound frame that could not be decoded.
func (d *Directory) Malformed(p *Participant, err error) {
	if d.participants[p.ID] != p {
		return
	}
	d.logger.Debug("malformed message", "participant_id", p.ID, "error", err)
	d.protocolError(p, "malformed message")
}

// Join moves p into roomID, creating the room if needed. Current members
// are told about p before p receives the pre-join roster.
func (d *Directory) Join(p *Participant, roomID, nickname string) {
	switch {
	case roomID == "":
		d.protocolError(p, "roomId is required")
		return
	case len(roomID) > maxRoomIDLength:
		d.protocolError(p, "roomId is too long")
		return
	case utf8.RuneCountInString(nickname) > maxNicknameLength:
		d.protocolError(p, "nickname is too long")
		return
	}
	if nickname == "" {
		nickname = defaultNickname
	}

	if p.RoomID != "" {
		d.leave(p, true)
		if d.participants[p.ID] != p {
			return
		}
	}

	room, ok := d.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID}
		d.rooms[roomID] = room
		d.metrics.Rooms.Set(float64(len(d.rooms)))
		d.logger.Info("room created", "room_id", roomID)
	}

	existing := room.snapshot()
	roster := room.roster()

	p.Nickname = nickname
	failed := d.broadcast(existing, protocol.ParticipantJoined(p.ID, nickname))

	room.add(p)
	p.RoomID = roomID
	d.logger.Info("participant joined room",
		"participant_id", p.ID, "room_id", roomID, "members", len(room.members))

	if !d.deliver(p, protocol.RoomJoined(roomID, p.ID)) ||
		!d.deliver(p, protocol.ExistingParticipants(roster)) {
		failed = append(failed, p)
	}

	d.evictAll(failed)
}

// Leave takes p out of its room. It reports whether p was in one; when it
// was not nothing is sent to anyone.
func (d *Directory) Leave(p *Participant) bool {
	return d.leave(p, true)
}

func (d *Directory) leave(p *Participant, confirm bool) bool {
	roomID := p.RoomID
	if roomID == "" {
		return false
	}
	p.RoomID = ""

	var failed []*Participant
	if room, ok := d.rooms[roomID]; ok {
		room.remove(p)
		if room.empty() {
			delete(d.rooms, roomID)
			d.metrics.Rooms.Set(float64(len(d.rooms)))
			d.logger.Info("room deleted", "room_id", roomID)
		} else {
			failed = d.broadcast(room.snapshot(), protocol.ParticipantLeft(p.ID))
		}
	}
	d.logger.Info("participant left room", "participant_id", p.ID, "room_id", roomID)

	if confirm && !d.deliver(p, protocol.RoomLeft(roomID)) {
		failed = append(failed, p)
	}

	d.evictAll(failed)
	return true
}

// Relay forwards an opaque payload from p to the participant with id to.
// An absent target is an expected race and is only logged.
func (d *Directory) Relay(p *Participant, to, callID string, payload json.RawMessage) {
	if to == "" {
		d.protocolError(p, "signal target is required")
		return
	}
	if len(payload) == 0 {
		d.protocolError(p, "signal payload is required")
		return
	}

	target, ok := d.participants[to]
	if !ok || target.closed {
		d.metrics.SignalsDropped.Inc()
		d.logger.Warn("signal target not found, dropping",
			"from", p.ID, "to", to, "call_id", callID)
		return
	}

	if !d.deliver(target, protocol.RelayedSignal(p.ID, callID, payload)) {
		d.metrics.SignalsDropped.Inc()
		d.logger.Warn("signal target not reading, dropping",
			"from", p.ID, "to", to, "call_id", callID)
		d.evict(target)
		return
	}
	d.metrics.SignalsRelayed.Inc()
}

// Members returns the ids of roomID's members in join order.
func (d *Directory) Members(roomID string) []string {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.members))
	for _, m := range room.members {
		ids = append(ids, m.ID)
	}
	return ids
}

// Lookup returns the registered participant with the given id.
func (d *Directory) Lookup(id string) (*Participant, bool) {
	p, ok := d.participants[id]
	return p, ok
}

func (d *Directory) Stats() Stats {
	return Stats{Rooms: len(d.rooms), Participants: len(d.participants)}
}

// Close disconnects every participant.
func (d *Directory) Close() {
	for id := range d.participants {
		d.Disconnect(id)
	}
}

func (d *Directory) protocolError(p *Participant, message string) {
	d.metrics.ProtocolErrors.Inc()
	d.logger.Warn("protocol error", "participant_id", p.ID, "message", message)
	if !d.deliver(p, protocol.Error(message)) {
		d.evict(p)
	}
}

// deliver queues msg for p without blocking.
func (d *Directory) deliver(p *Participant, msg *protocol.Message) bool {
	if p.closed {
		return false
	}
	select {
	case p.Send <- msg:
		return true
	default:
		return false
	}
}

// broadcast sends msg to every participant in members and returns the ones
// whose queue was full. It never changes membership itself.
func (d *Directory) broadcast(members []*Participant, msg *protocol.Message) []*Participant {
	var failed []*Participant
	for _, m := range members {
		if !d.deliver(m, msg) {
			failed = append(failed, m)
		}
	}
	return failed
}

func (d *Directory) evict(p *Participant) {
	if d.participants[p.ID] != p {
		return
	}
	d.metrics.Evictions.Inc()
	d.logger.Warn("send queue full, evicting participant", "participant_id", p.ID)
	d.Disconnect(p.ID)
}

func (d *Directory) evictAll(ps []*Participant) {
	for _, p := range ps {
		d.evict(p)
	}
}
