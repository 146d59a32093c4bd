package as2

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the remote partner profiles and local AS2 identities for
// one client. Updates are last-write-wins by id and never partially
// visible: entries are stored and returned by value.
type Registry struct {
	mu       sync.RWMutex
	partners map[string]PartnerConfig
	locals   map[string]LocalProfile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		partners: make(map[string]PartnerConfig),
		locals:   make(map[string]LocalProfile),
	}
}

// Register adds or replaces a partner profile.
func (r *Registry) Register(p PartnerConfig) error {
	if p.PartnerID == "" {
		return &ValidationError{Field: "partnerId", Message: "must not be empty"}
	}
	if p.AS2ID == "" {
		return &ValidationError{Field: "as2Id", Message: "must not be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partners[p.PartnerID] = p
	return nil
}

// Get returns the partner profile for id.
func (r *Registry) Get(id string) (PartnerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partners[id]
	if !ok {
		return PartnerConfig{}, fmt.Errorf("as2 partner %q: %w", id, ErrPartnerNotFound)
	}
	return p, nil
}

// Remove deletes a partner profile. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.partners, id)
}

// List returns all partner profiles sorted by id.
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
		return PartnerConfig{}, fmt.Errorf("as2 partner %q: %w", id, ErrPartnerInactive)
	}
	return p, nil
}

// RegisterLocal adds or replaces a local AS2 identity.
func (r *Registry) RegisterLocal(p LocalProfile) error {
	if p.ProfileID == "" {
		return &ValidationError{Field: "profileId", Message: "must not be empty"}
	}
	if p.AS2ID == "" {
		return &ValidationError{Field: "as2Id", Message: "must not be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locals[p.ProfileID] = p
	return nil
}

// RemoveLocal deletes a local identity.
func (r *Registry) RemoveLocal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locals, id)
}

// ListLocals returns all local identities sorted by id.
func (r *Registry) ListLocals() []LocalProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LocalProfile, 0, len(r.locals))
	for _, p := range r.locals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out
}

// LocalByAS2ID resolves the local identity an inbound AS2-To header names.
func (r *Registry) LocalByAS2ID(as2ID string) (LocalProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.locals {
		if p.AS2ID == as2ID {
			return p, nil
		}
	}
	return LocalProfile{}, fmt.Errorf("as2 identity %q: %w", as2ID, ErrProfileNotFound)
}
