package sftpx

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds SFTP partner configurations. Updates are last-write-wins
// by id; entries are stored and returned by value.
type Registry struct {
	mu       sync.RWMutex
	partners map[string]PartnerConfig
}

// NewRegistry creates an empty partner registry.
func NewRegistry() *Registry {
	return &Registry{partners: make(map[string]PartnerConfig)}
}

// Register adds or replaces a partner configuration.
func (r *Registry) Register(p PartnerConfig) error {
	if p.PartnerID == "" {
		return &ValidationError{Field: "partnerId", Message: "must not be empty"}
	}
	if p.Host == "" {
		return &ValidationError{Field: "host", Message: "must not be empty"}
	}
	if p.Username == "" {
		return &ValidationError{Field: "username", Message: "must not be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partners[p.PartnerID] = p
	return nil
}

// Get returns the configuration for a partner id.
func (r *Registry) Get(id string) (PartnerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partners[id]
	if !ok {
		return PartnerConfig{}, fmt.Errorf("sftp partner %q: %w", id, ErrPartnerNotFound)
	}
	return p, nil
}

// Remove deletes a partner. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.partners, id)
}

// List returns all registered partners sorted by partner id.
func (r *Registry) List() []PartnerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PartnerConfig, 0, len(r.partners))
	for _, p := range r.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartnerID < out[j].PartnerID })
	return out
}

// resolveActive returns the partner for id, failing fast before any
// network attempt when the partner is unknown or inactive.
func (r *Registry) resolveActive(id string) (PartnerConfig, error) {
	p, err := r.Get(id)
	if err != nil {
		return PartnerConfig{}, err
	}
	if !p.Active {
		return PartnerConfig{}, fmt.Errorf("sftp partner %q: %w", id, ErrPartnerInactive)
	}
	return p, nil
}
