// Package memory provides an in-memory implementation of storage.Store.
//
// It backs tests and single-process deployments that do not need
// durability. All operations copy records on the way in and out, so
// callers can never mutate stored state through a returned pointer.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/go-edi/internal/storage"
)

// Store is a concurrency-safe in-memory storage.Store.
type Store struct {
	mu           sync.RWMutex
	partners     map[string]*storage.TradingPartner
	keyPairs     map[string]*storage.KeyPair
	certificates map[string]*storage.Certificate
	logEntries   map[string]*storage.TransportLogEntry
	pollJobs     map[string]*storage.PollJob
	deliveryJobs map[string]*storage.DeliveryJob
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		partners:     make(map[string]*storage.TradingPartner),
		keyPairs:     make(map[string]*storage.KeyPair),
		certificates: make(map[string]*storage.Certificate),
		logEntries:   make(map[string]*storage.TransportLogEntry),
		pollJobs:     make(map[string]*storage.PollJob),
		deliveryJobs: make(map[string]*storage.DeliveryJob),
	}
}

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error { return nil }

// Ping is a no-op.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Partners

func (s *Store) CreatePartner(_ context.Context, p *storage.TradingPartner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[p.ID] = copyPartner(p)
	return nil
}

func (s *Store) GetPartner(_ context.Context, tenantID, id string) (*storage.TradingPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partners[id]
	if !ok || p.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	return copyPartner(p), nil
}

func (s *Store) GetPartnerByCode(_ context.Context, tenantID, code string) (*storage.TradingPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partners {
		if p.TenantID == tenantID && p.Code == code {
			return copyPartner(p), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdatePartner(_ context.Context, p *storage.TradingPartner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.partners[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return storage.ErrNotFound
	}
	s.partners[p.ID] = copyPartner(p)
	return nil
}

func (s *Store) DeletePartner(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok || p.TenantID != tenantID {
		return storage.ErrNotFound
	}
	delete(s.partners, id)
	return nil
}

func (s *Store) ListPartners(_ context.Context, tenantID string) ([]*storage.TradingPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.TradingPartner
	for _, p := range s.partners {
		if p.TenantID == tenantID {
			out = append(out, copyPartner(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Key pairs

func (s *Store) CreateKeyPair(_ context.Context, kp *storage.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *kp
	s.keyPairs[kp.ID] = &cp
	return nil
}

func (s *Store) GetKeyPair(_ context.Context, tenantID, id string) (*storage.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kp, ok := s.keyPairs[id]
	if !ok || kp.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *kp
	return &cp, nil
}

func (s *Store) DeleteKeyPair(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kp, ok := s.keyPairs[id]
	if !ok || kp.TenantID != tenantID {
		return storage.ErrNotFound
	}
	delete(s.keyPairs, id)
	return nil
}

func (s *Store) ListKeyPairs(_ context.Context, tenantID string) ([]*storage.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.KeyPair
	for _, kp := range s.keyPairs {
		if kp.TenantID == tenantID {
			cp := *kp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Certificates

func (s *Store) CreateCertificate(_ context.Context, cert *storage.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cert
	s.certificates[cert.ID] = &cp
	return nil
}

func (s *Store) GetCertificate(_ context.Context, tenantID, id string) (*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certificates[id]
	if !ok || cert.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

func (s *Store) DeleteCertificate(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certificates[id]
	if !ok || cert.TenantID != tenantID {
		return storage.ErrNotFound
	}
	delete(s.certificates, id)
	return nil
}

func (s *Store) ListCertificates(_ context.Context, tenantID string) ([]*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Certificate
	for _, cert := range s.certificates {
		if cert.TenantID == tenantID {
			cp := *cert
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListCertificatesExpiringBefore(_ context.Context, tenantID string, cutoff time.Time) ([]*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Certificate
	for _, cert := range s.certificates {
		if cert.TenantID == tenantID && cert.NotAfter.Before(cutoff) {
			cp := *cert
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotAfter.Before(out[j].NotAfter) })
	return out, nil
}

// Transport log

func (s *Store) CreateLogEntry(_ context.Context, entry *storage.TransportLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logEntries[entry.ID] = copyLogEntry(entry)
	return nil
}

func (s *Store) GetLogEntry(_ context.Context, tenantID, id string) (*storage.TransportLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.logEntries[id]
	if !ok || entry.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	return copyLogEntry(entry), nil
}

func (s *Store) UpdateLogEntry(_ context.Context, entry *storage.TransportLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.logEntries[entry.ID]
	if !ok || existing.TenantID != entry.TenantID {
		return storage.ErrNotFound
	}
	s.logEntries[entry.ID] = copyLogEntry(entry)
	return nil
}

func (s *Store) QueryLogEntries(_ context.Context, tenantID string, filter *storage.LogFilter) ([]*storage.TransportLogEntry, error) {
	s.mu.RLock()
	matched := s.matchLogEntries(tenantID, filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	page, limit := 1, 0
	if filter != nil {
		if filter.Page > 1 {
			page = filter.Page
		}
		limit = filter.Limit
	}
	if limit > 0 {
		start := (page - 1) * limit
		if start >= len(matched) {
			return nil, nil
		}
		end := min(start+limit, len(matched))
		matched = matched[start:end]
	}

	out := make([]*storage.TransportLogEntry, len(matched))
	for i, e := range matched {
		out[i] = copyLogEntry(e)
	}
	return out, nil
}

func (s *Store) CountLogEntries(_ context.Context, tenantID string, filter *storage.LogFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchLogEntries(tenantID, filter))), nil
}

// matchLogEntries returns references; callers must copy before releasing
// the lock results to the outside.
func (s *Store) matchLogEntries(tenantID string, filter *storage.LogFilter) []*storage.TransportLogEntry {
	var matched []*storage.TransportLogEntry
	for _, e := range s.logEntries {
		if e.TenantID != tenantID {
			continue
		}
		if filter != nil {
			if filter.PartnerID != "" && e.PartnerID != filter.PartnerID {
				continue
			}
			if filter.Protocol != "" && e.Protocol != filter.Protocol {
				continue
			}
			if filter.Direction != "" && e.Direction != filter.Direction {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched
}

func (s *Store) DeleteLogEntriesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, e := range s.logEntries {
		if e.StartedAt.Before(cutoff) {
			delete(s.logEntries, id)
			removed++
		}
	}
	return removed, nil
}

// Poll jobs

func (s *Store) CreatePollJob(_ context.Context, job *storage.PollJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.pollJobs[job.ID] = &cp
	return nil
}

func (s *Store) GetPollJob(_ context.Context, tenantID, id string) (*storage.PollJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.pollJobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *Store) UpdatePollJob(_ context.Context, job *storage.PollJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.pollJobs[job.ID]
	if !ok || existing.TenantID != job.TenantID {
		return storage.ErrNotFound
	}
	cp := *job
	s.pollJobs[job.ID] = &cp
	return nil
}

func (s *Store) DeletePollJob(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.pollJobs[id]
	if !ok || job.TenantID != tenantID {
		return storage.ErrNotFound
	}
	delete(s.pollJobs, id)
	return nil
}

func (s *Store) ListPollJobs(_ context.Context, tenantID string) ([]*storage.PollJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.PollJob
	for _, job := range s.pollJobs {
		if job.TenantID == tenantID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delivery jobs

func (s *Store) CreateDeliveryJob(_ context.Context, job *storage.DeliveryJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveryJobs[job.ID] = copyDeliveryJob(job)
	return nil
}

func (s *Store) GetDeliveryJob(_ context.Context, tenantID, id string) (*storage.DeliveryJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.deliveryJobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	return copyDeliveryJob(job), nil
}

func (s *Store) UpdateDeliveryJob(_ context.Context, job *storage.DeliveryJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.deliveryJobs[job.ID]
	if !ok || existing.TenantID != job.TenantID {
		return storage.ErrNotFound
	}
	s.deliveryJobs[job.ID] = copyDeliveryJob(job)
	return nil
}

func (s *Store) ListDeliveryJobs(_ context.Context, tenantID string, filter *storage.JobFilter) ([]*storage.DeliveryJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.DeliveryJob
	for _, job := range s.deliveryJobs {
		if job.TenantID != tenantID {
			continue
		}
		if filter != nil {
			if filter.PartnerID != "" && job.PartnerID != filter.PartnerID {
				continue
			}
			if filter.Status != "" && job.Status != filter.Status {
				continue
			}
		}
		out = append(out, copyDeliveryJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetPendingDeliveries(_ context.Context, tenantID string, limit int) ([]*storage.DeliveryJob, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.DeliveryJob
	for _, job := range s.deliveryJobs {
		if job.TenantID != tenantID || job.Status != storage.JobPending {
			continue
		}
		if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
			continue
		}
		out = append(out, copyDeliveryJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountDeliveriesByStatus(_ context.Context, tenantID string) (map[storage.JobStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[storage.JobStatus]int64)
	for _, job := range s.deliveryJobs {
		if job.TenantID == tenantID {
			counts[job.Status]++
		}
	}
	return counts, nil
}

// Copy helpers

func copyPartner(p *storage.TradingPartner) *storage.TradingPartner {
	cp := *p
	if p.AS2 != nil {
		as2cfg := *p.AS2
		cp.AS2 = &as2cfg
	}
	if p.SFTP != nil {
		sftpcfg := *p.SFTP
		cp.SFTP = &sftpcfg
	}
	return &cp
}

func copyLogEntry(e *storage.TransportLogEntry) *storage.TransportLogEntry {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = maps.Clone(e.Metadata)
	}
	if e.CompletedAt != nil {
		completed := *e.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

func copyDeliveryJob(j *storage.DeliveryJob) *storage.DeliveryJob {
	cp := *j
	cp.Payload = slices.Clone(j.Payload)
	if j.NextRetryAt != nil {
		next := *j.NextRetryAt
		cp.NextRetryAt = &next
	}
	return &cp
}
