package session

import (
	"sync"

	"github.com/BioHazard786/huddle/internal/protocol"
)

// EventKind distinguishes the two things a subscriber is told about.
type EventKind int

const (
	// EventState reports a state transition. Err carries the cause when
	// the transition was not requested.
	EventState EventKind = iota
	// EventMessage carries one decoded server message.
	EventMessage
)

// Event is delivered to every subscriber in the order it happened.
type Event struct {
	Kind    EventKind
	State   State
	Err     error
	Message *protocol.Message
}

// dispatcher fans events out to subscribers from its own goroutine, so
// emitting never blocks the connection and subscribers may call back into
// the Client.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	subs   map[int]func(Event)
	nextID int
	closed bool
}

func newDispatcher() *dispatcher {
	d := &dispatcher{subs: make(map[int]func(Event))}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(Event)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

// close stops the dispatcher once the queued events have been delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		subs := make([]func(Event), 0, len(d.subs))
		for _, fn := range d.subs {
			subs = append(subs, fn)
		}
		d.mu.Unlock()

		for _, fn := range subs {
			fn(ev)
		}
	}
}
