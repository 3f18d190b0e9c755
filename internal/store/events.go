package store

// Event names published by the store.
const (
	EventFetchStart  = "fetch_start"
	EventFetchReady  = "fetch_ready"
	EventFetchFailed = "fetch_failed"
	EventFetchStale  = "fetch_stale"
	EventPut         = "put"
	EventReset       = "reset"
)

// Event represents a slot transition.
// Minimal and stable: name + key + resulting status, optional fields via key/values.
type Event struct {
	Name   string         `json:"name"`
	Key    string         `json:"key"`
	Kind   Kind           `json:"kind"`
	Status Status         `json:"status"`
	Seq    uint64         `json:"seq"`
	Err    string         `json:"error,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the store. Publish is called with the
// store lock held so per-key order is preserved; implementations must be
// lightweight, must not block and must not call back into the Store.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// multiPublisher fans an event out to several publishers in order.
type multiPublisher []EventPublisher

func (m multiPublisher) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// Publishers combines publishers, skipping nils.
func Publishers(ps ...EventPublisher) EventPublisher {
	out := make(multiPublisher, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return noopPublisher{}
	case 1:
		return out[0]
	}
	return out
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }
