package keystore

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/internal/storage"
)

// ErrCertNotFound indicates the requested certificate does not exist
var ErrCertNotFound = errors.New("certificate not found")

// ImportCertificate parses and stores a PEM-encoded X.509 certificate.
func (m *Manager) ImportCertificate(ctx context.Context, tenantID, name, pemData string) (*storage.Certificate, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no CERTIFICATE block found in PEM data")
	}
	parsed, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	sum := sha256.Sum256(parsed.Raw)
	cert := &storage.Certificate{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        name,
		PEM:         pemData,
		Subject:     parsed.Subject.String(),
		Fingerprint: hex.EncodeToString(sum[:]),
		NotBefore:   parsed.NotBefore,
		NotAfter:    parsed.NotAfter,
		CreatedAt:   time.Now(),
	}
	if err := m.certs.CreateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("storing certificate: %w", err)
	}

	m.logger.Info("certificate imported",
		slog.String("tenant_id", tenantID),
		slog.String("cert_id", cert.ID),
		slog.String("subject", cert.Subject),
		slog.Time("not_after", cert.NotAfter))

	return cert, nil
}

// GetCertificate retrieves a stored certificate.
func (m *Manager) GetCertificate(ctx context.Context, tenantID, id string) (*storage.Certificate, error) {
	cert, err := m.certs.GetCertificate(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("certificate %q: %w", id, ErrCertNotFound)
	}
	return cert, err
}

// ListCertificates returns all certificates for a tenant.
func (m *Manager) ListCertificates(ctx context.Context, tenantID string) ([]*storage.Certificate, error) {
	return m.certs.ListCertificates(ctx, tenantID)
}

// DeleteCertificate permanently removes a certificate.
func (m *Manager) DeleteCertificate(ctx context.Context, tenantID, id string) error {
	err := m.certs.DeleteCertificate(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("certificate %q: %w", id, ErrCertNotFound)
	}
	return err
}

// ExpiringWithin returns certificates expiring inside the horizon,
// soonest first. Already-expired certificates are included.
func (m *Manager) ExpiringWithin(ctx context.Context, tenantID string, horizon time.Duration) ([]*storage.Certificate, error) {
	return m.certs.ListCertificatesExpiringBefore(ctx, tenantID, time.Now().Add(horizon))
}
