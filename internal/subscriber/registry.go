// Package subscriber implements the set of message sinks a volume
// broadcasts ServerEvents to, in commit order.
package subscriber

import (
	"sync"

	"github.com/styrainc/rtvolume/pkg/api"
)

// Sink is an abstract message sink; the long-lived message transport
// (§1 out of scope) provides the concrete implementation, e.g. a
// websocket connection.
type Sink interface {
	// Send delivers one JSON-serialised ServerEvent. Send must not block
	// indefinitely: implementations are expected to apply their own
	// timeout and return an error so Registry can evict them.
	Send(event api.ServerEvent) error
}

// Registry is a concurrency-safe set of Sinks.
type Registry struct {
	mu    sync.Mutex
	sinks map[int64]Sink
	next  int64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sinks: map[int64]Sink{}}
}

// Subscription identifies a registered Sink for later removal.
type Subscription struct {
	id int64
	r  *Registry
}

// Unsubscribe removes the sink from the registry. Safe to call more than
// once.
func (s Subscription) Unsubscribe() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	delete(s.r.sinks, s.id)
}

// Subscribe registers sink and returns a handle to remove it later.
func (r *Registry) Subscribe(sink Sink) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.sinks[id] = sink
	return Subscription{id: id, r: r}
}

// Count returns the number of currently registered sinks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// Broadcast delivers event to every registered sink. A sink whose Send
// fails (error or, at the transport layer, a timeout) is removed from
// the registry; Broadcast continues delivering to the rest.
func (r *Registry) Broadcast(event api.ServerEvent) {
	r.mu.Lock()
	targets := make(map[int64]Sink, len(r.sinks))
	for id, s := range r.sinks {
		targets[id] = s
	}
	r.mu.Unlock()

	var dead []int64
	for id, s := range targets {
		if err := s.Send(event); err != nil {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range dead {
		delete(r.sinks, id)
	}
	r.mu.Unlock()
}
