package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BioHazard786/huddle/internal/protocol"
)

// inbound is one frame read from a participant's connection. Exactly one
// of msg and err is set.
type inbound struct {
	participant *Participant
	msg         *protocol.Message
	err         error
}

// Hub is the central brain of the relay.
// Run is the single goroutine that touches the Directory, so join, leave,
// relay and disconnect never interleave.
type Hub struct {
	directory *Directory
	logger    *slog.Logger

	register   chan *Participant
	unregister chan *Participant
	inbound    chan inbound
	stats      chan chan Stats

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub around directory. Call Run to start it.
func NewHub(directory *Directory, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		directory:  directory,
		logger:     logger,
		register:   make(chan *Participant),
		unregister: make(chan *Participant),
		inbound:    make(chan inbound, 64),
		stats:      make(chan chan Stats),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main processing loop and blocks until Stop.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.directory.Close()
			h.logger.Info("hub stopped")
			return

		case p := <-h.register:
			h.directory.Connect(p)

		case p := <-h.unregister:
			h.directory.Disconnect(p.ID)

		case in := <-h.inbound:
			if in.err != nil {
				h.directory.Malformed(in.participant, in.err)
				continue
			}
			h.directory.Handle(in.participant, in.msg)

		case reply := <-h.stats:
			reply <- h.directory.Stats()
		}
	}
}

// Register adds p to the directory. It returns false once the hub has
// stopped.
func (h *Hub) Register(p *Participant) bool {
	select {
	case h.register <- p:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes p. Safe to call more than once.
func (h *Hub) Unregister(p *Participant) {
	select {
	case h.unregister <- p:
	case <-h.done:
	}
}

// Dispatch hands a decoded message, or the error that prevented decoding
// it, to the hub.
func (h *Hub) Dispatch(p *Participant, msg *protocol.Message, err error) {
	select {
	case h.inbound <- inbound{participant: p, msg: msg, err: err}:
	case <-h.done:
	}
}

// Stats returns room and participant counts as seen by the hub goroutine.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return Stats{}, context.Canceled
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Stop disconnects everyone and ends Run. It waits for Run to return, so
// Run must have been started.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}
