// Package partner manages trading partner aggregates.
//
// A trading partner couples one business identity (tenant-scoped code)
// with up to two transport profiles, AS2 and SFTP. The service keeps
// the durable store and the in-memory transport registries in sync:
// create and update register the partner's profiles with the AS2 and
// SFTP clients, delete removes them.
package partner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/pkg/as2"
	"github.com/sirosfoundation/go-edi/pkg/sftpx"
)

var (
	// ErrPartnerNotFound indicates the partner does not exist
	ErrPartnerNotFound = errors.New("trading partner not found")

	// ErrNoSuchProtocol indicates the partner has no profile for the
	// requested protocol
	ErrNoSuchProtocol = errors.New("partner has no profile for protocol")
)

// Service manages trading partners.
type Service struct {
	store  storage.PartnerStore
	as2    *as2.Client
	sftp   *sftpx.Client
	logger *slog.Logger
}

// NewService creates a partner service wired to the given transports.
func NewService(store storage.PartnerStore, as2Client *as2.Client, sftpClient *sftpx.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, as2: as2Client, sftp: sftpClient, logger: logger}
}

// Create stores a new partner and registers its transport profiles.
func (s *Service) Create(ctx context.Context, p *storage.TradingPartner) (*storage.TradingPartner, error) {
	if p.TenantID == "" {
		return nil, errors.New("partner tenant id must not be empty")
	}
	if p.Code == "" {
		return nil, errors.New("partner code must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.syncTransports(p); err != nil {
		return nil, err
	}
	if err := s.store.CreatePartner(ctx, p); err != nil {
		s.deregister(p.ID)
		return nil, fmt.Errorf("storing partner: %w", err)
	}

	s.logger.Info("trading partner created",
		slog.String("tenant_id", p.TenantID),
		slog.String("partner_id", p.ID),
		slog.String("code", p.Code),
		slog.Bool("as2", p.AS2 != nil),
		slog.Bool("sftp", p.SFTP != nil))
	return p, nil
}

// Update replaces a partner's attributes and re-registers its profiles.
// Profiles removed from the aggregate are deregistered.
func (s *Service) Update(ctx context.Context, p *storage.TradingPartner) (*storage.TradingPartner, error) {
	existing, err := s.Get(ctx, p.TenantID, p.ID)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()

	if err := s.syncTransports(p); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePartner(ctx, p); err != nil {
		return nil, fmt.Errorf("updating partner: %w", err)
	}

	s.logger.Info("trading partner updated",
		slog.String("tenant_id", p.TenantID),
		slog.String("partner_id", p.ID))
	return p, nil
}

// Delete removes a partner and deregisters its transport profiles.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	err := s.store.DeletePartner(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("partner %q: %w", id, ErrPartnerNotFound)
	}
	if err != nil {
		return err
	}
	s.deregister(id)

	s.logger.Info("trading partner deleted",
		slog.String("tenant_id", tenantID),
		slog.String("partner_id", id))
	return nil
}

// Get retrieves a partner by id.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*storage.TradingPartner, error) {
	p, err := s.store.GetPartner(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("partner %q: %w", id, ErrPartnerNotFound)
	}
	return p, err
}

// GetByCode retrieves a partner by its business code.
func (s *Service) GetByCode(ctx context.Context, tenantID, code string) (*storage.TradingPartner, error) {
	p, err := s.store.GetPartnerByCode(ctx, tenantID, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("partner code %q: %w", code, ErrPartnerNotFound)
	}
	return p, err
}

// List returns all partners for a tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]*storage.TradingPartner, error) {
	return s.store.ListPartners(ctx, tenantID)
}

// HealthResult reports the outcome of a connection test.
type HealthResult struct {
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// TestConnection probes the partner's endpoint for the given protocol.
// Transport failures are reported in the result, not as an error.
func (s *Service) TestConnection(ctx context.Context, tenantID, id string, protocol storage.Protocol) (*HealthResult, error) {
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	var latency time.Duration
	switch protocol {
	case storage.ProtocolAS2:
		if p.AS2 == nil {
			return nil, fmt.Errorf("partner %q: %w: AS2", id, ErrNoSuchProtocol)
		}
		latency, err = s.as2.TestConnection(ctx, p.ID)
	case storage.ProtocolSFTP:
		if p.SFTP == nil {
			return nil, fmt.Errorf("partner %q: %w: SFTP", id, ErrNoSuchProtocol)
		}
		latency, err = s.sftp.TestConnection(ctx, p.ID)
	default:
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}

	if err != nil {
		return &HealthResult{Healthy: false, Error: err.Error()}, nil
	}
	return &HealthResult{Healthy: true, LatencyMs: latency.Milliseconds()}, nil
}

// syncTransports registers present profiles and removes absent ones.
// Profile partner ids are forced to the aggregate id so transports and
// storage always agree on the key.
func (s *Service) syncTransports(p *storage.TradingPartner) error {
	if p.AS2 != nil {
		cfg := *p.AS2
		cfg.PartnerID = p.ID
		cfg.Active = cfg.Active && p.Active
		if err := s.as2.Registry().Register(cfg); err != nil {
			return fmt.Errorf("registering AS2 profile: %w", err)
		}
		p.AS2 = &cfg
	} else {
		s.as2.Registry().Remove(p.ID)
	}

	if p.SFTP != nil {
		cfg := *p.SFTP
		cfg.PartnerID = p.ID
		cfg.Active = cfg.Active && p.Active
		if err := s.sftp.Registry().Register(cfg); err != nil {
			s.as2.Registry().Remove(p.ID)
			return fmt.Errorf("registering SFTP profile: %w", err)
		}
		p.SFTP = &cfg
	} else {
		s.sftp.Registry().Remove(p.ID)
	}
	return nil
}

func (s *Service) deregister(id string) {
	s.as2.Registry().Remove(id)
	s.sftp.Registry().Remove(id)
}
