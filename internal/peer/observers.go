package peer

import "sync"

// observers delivers notifications in order from one goroutine so that
// observers never run under a peer lock.
type observers struct {
	calls *queue

	mu     sync.Mutex
	subs   map[int]Observer
	nextID int
}

func newObservers() *observers {
	return &observers{
		calls: newQueue(),
		subs:  make(map[int]Observer),
	}
}

func (o *observers) subscribe(obs Observer) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = obs
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *observers) notify(fn func(Observer)) {
	o.calls.push(func() {
		o.mu.Lock()
		subs := make([]Observer, 0, len(o.subs))
		for _, obs := range o.subs {
			subs = append(subs, obs)
		}
		o.mu.Unlock()

		for _, obs := range subs {
			fn(obs)
		}
	})
}

// close delivers what is queued, then stops.
func (o *observers) close() {
	o.calls.close()
	o.calls.wait()
}
