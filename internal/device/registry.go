package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds independent devices by ID.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: map[string]*Controller{}}
}

// Add opens a device and registers it.
func (r *Registry) Add(ctx context.Context, cfg Config) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[cfg.ID]; ok {
		return nil, fmt.Errorf("device %s already registered", cfg.ID)
	}
	c, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.devices[cfg.ID] = c
	return c, nil
}

// Get returns the device with id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.devices[id]
	return c, ok
}

// IDs returns the registered device IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes all data of a device and unregisters it.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	c, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("device %s not registered", id)
	}
	return c.Remove(ctx)
}

// Close closes every device.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.devices {
		c.Close()
	}
}
