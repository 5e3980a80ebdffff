package tsrpc

import (
	"iter"
	"sync"
)

// Registry collects endpoint descriptors as they are declared.
// Registration is append-only and safe for concurrent use; iteration sees a
// snapshot taken when the sequence is ranged over.
type Registry struct {
	mu          sync.Mutex
	descriptors []*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that Declare and Register
// write to.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds d to the process-wide registry.
func Register(d *Descriptor) {
	defaultRegistry.Register(d)
}

// Register adds a copy of d. Names are not checked here: uniqueness is
// enforced when endpoints are activated and when the client is generated.
func (r *Registry) Register(d *Descriptor) {
	c := d.clone()
	r.mu.Lock()
	r.descriptors = append(r.descriptors, c)
	r.mu.Unlock()
}

// All returns every descriptor registered so far, in registration order.
// Each call to the returned sequence takes a fresh snapshot.
func (r *Registry) All() iter.Seq[*Descriptor] {
	return func(yield func(*Descriptor) bool) {
		for _, d := range r.snapshot() {
			if !yield(d.clone()) {
				return
			}
		}
	}
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.descriptors)
}

func (r *Registry) snapshot() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	// descriptors is append-only, so the prefix we capture never changes.
	return r.descriptors[:len(r.descriptors):len(r.descriptors)]
}
