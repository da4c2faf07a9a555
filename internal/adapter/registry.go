package adapter

import "sync"

// Registry maps an event source name to the transport serving it, so
// replies, prompts, and notices always leave through the same adapter the
// conversation arrived on.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

func NewRegistry(transports ...Transport) *Registry {
	r := &Registry{transports: make(map[string]Transport)}
	for _, t := range transports {
		r.Register(t)
	}
	return r
}

// Register binds a transport under its own name.
func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Name()] = t
}

// Lookup returns the transport for a source. An empty or unknown source
// falls back to the sole registered transport; once several are registered
// there is no safe fallback and the lookup fails.
func (r *Registry) Lookup(source string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.transports[source]; ok {
		return t, true
	}
	if len(r.transports) == 1 {
		for _, t := range r.transports {
			return t, true
		}
	}
	return nil, false
}

// Len reports how many transports are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transports)
}
