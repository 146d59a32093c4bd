package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/pkg/sftpx"
)

var (
	// ErrKeyNotFound indicates the requested key pair does not exist
	ErrKeyNotFound = errors.New("key pair not found")

	// ErrNoPrivateKey indicates the key pair holds only the public half
	ErrNoPrivateKey = errors.New("key pair has no private key")
)

const minRSABits = 2048

// Config configures a key and certificate manager.
type Config struct {
	// EncryptionKey seals private keys at rest when non-empty. Any
	// length is accepted; it is stretched to an AES-256 key.
	EncryptionKey string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager stores and serves key pairs and certificates.
type Manager struct {
	keys   storage.KeyPairStore
	certs  storage.CertificateStore
	sealer *sealer
	logger *slog.Logger
}

// NewManager creates a manager backed by the given stores.
func NewManager(keys storage.KeyPairStore, certs storage.CertificateStore, config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var s *sealer
	if config.EncryptionKey != "" {
		s = newSealer(config.EncryptionKey)
	}
	return &Manager{keys: keys, certs: certs, sealer: s, logger: logger}
}

// GenerateKeyPair creates a new key pair for a tenant. Supported
// algorithms are "rsa" (bits >= 2048, default 2048) and "ed25519".
func (m *Manager) GenerateKeyPair(ctx context.Context, tenantID, name, algorithm string, bits int) (*storage.KeyPair, error) {
	var (
		privDER []byte
		pubKey  ssh.PublicKey
		err     error
	)

	switch strings.ToLower(algorithm) {
	case "rsa":
		if bits == 0 {
			bits = minRSABits
		}
		if bits < minRSABits {
			return nil, fmt.Errorf("rsa keys must be at least %d bits, got %d", minRSABits, bits)
		}
		key, genErr := rsa.GenerateKey(rand.Reader, bits)
		if genErr != nil {
			return nil, fmt.Errorf("generating rsa key: %w", genErr)
		}
		privDER, err = x509.MarshalPKCS8PrivateKey(key)
		if err == nil {
			pubKey, err = ssh.NewPublicKey(&key.PublicKey)
		}
	case "ed25519":
		pub, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, fmt.Errorf("generating ed25519 key: %w", genErr)
		}
		bits = 0
		privDER, err = x509.MarshalPKCS8PrivateKey(priv)
		if err == nil {
			pubKey, err = ssh.NewPublicKey(pub)
		}
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s key: %w", algorithm, err)
	}

	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	if m.sealer != nil {
		privPEM, err = m.sealer.seal(privPEM)
		if err != nil {
			return nil, fmt.Errorf("sealing private key: %w", err)
		}
	}

	kp := &storage.KeyPair{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Name:          name,
		Algorithm:     strings.ToLower(algorithm),
		Bits:          bits,
		PublicKey:     strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pubKey))),
		Fingerprint:   ssh.FingerprintSHA256(pubKey),
		PrivateKeyPEM: privPEM,
		HasPrivate:    true,
		CreatedAt:     time.Now(),
	}
	if err := m.keys.CreateKeyPair(ctx, kp); err != nil {
		return nil, fmt.Errorf("storing key pair: %w", err)
	}

	m.logger.Info("key pair generated",
		slog.String("tenant_id", tenantID),
		slog.String("key_id", kp.ID),
		slog.String("algorithm", kp.Algorithm),
		slog.String("fingerprint", kp.Fingerprint))

	return redactKeyPair(kp), nil
}

// ImportPublicKey stores the public half of a partner-provided key, in
// OpenSSH authorized_keys format. The resulting pair cannot sign.
func (m *Manager) ImportPublicKey(ctx context.Context, tenantID, name, authorizedKey string) (*storage.KeyPair, error) {
	pubKey, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if name == "" {
		name = comment
	}

	kp := &storage.KeyPair{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        name,
		Algorithm:   pubKey.Type(),
		PublicKey:   strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pubKey))),
		Fingerprint: ssh.FingerprintSHA256(pubKey),
		HasPrivate:  false,
		CreatedAt:   time.Now(),
	}
	if err := m.keys.CreateKeyPair(ctx, kp); err != nil {
		return nil, fmt.Errorf("storing key pair: %w", err)
	}

	m.logger.Info("public key imported",
		slog.String("tenant_id", tenantID),
		slog.String("key_id", kp.ID),
		slog.String("fingerprint", kp.Fingerprint))

	return kp, nil
}

// GetKeyPair returns key pair metadata. The private key is blanked.
func (m *Manager) GetKeyPair(ctx context.Context, tenantID, id string) (*storage.KeyPair, error) {
	kp, err := m.keys.GetKeyPair(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("key pair %q: %w", id, ErrKeyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return redactKeyPair(kp), nil
}

// ListKeyPairs returns all key pairs for a tenant, private keys blanked.
func (m *Manager) ListKeyPairs(ctx context.Context, tenantID string) ([]*storage.KeyPair, error) {
	pairs, err := m.keys.ListKeyPairs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i, kp := range pairs {
		pairs[i] = redactKeyPair(kp)
	}
	return pairs, nil
}

// DeleteKeyPair permanently removes a key pair.
func (m *Manager) DeleteKeyPair(ctx context.Context, tenantID, id string) error {
	err := m.keys.DeleteKeyPair(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("key pair %q: %w", id, ErrKeyNotFound)
	}
	return err
}

// PrivateKeyPEM returns the decrypted private key in PEM form. This is
// the only way private material leaves the manager.
func (m *Manager) PrivateKeyPEM(ctx context.Context, tenantID, id string) (string, error) {
	kp, err := m.keys.GetKeyPair(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("key pair %q: %w", id, ErrKeyNotFound)
	}
	if err != nil {
		return "", err
	}
	if !kp.HasPrivate {
		return "", fmt.Errorf("key pair %q: %w", id, ErrNoPrivateKey)
	}
	if m.sealer != nil {
		return m.sealer.open(kp.PrivateKeyPEM)
	}
	return kp.PrivateKeyPEM, nil
}

// Signer builds an SSH signer from a stored private key.
func (m *Manager) Signer(ctx context.Context, tenantID, id string) (ssh.Signer, error) {
	pemData, err := m.PrivateKeyPEM(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key %q: %w", id, err)
	}
	return signer, nil
}

// Resolver returns a tenant-scoped key resolver for the SFTP transport.
func (m *Manager) Resolver(tenantID string) sftpx.KeyResolver {
	return &tenantResolver{manager: m, tenantID: tenantID}
}

type tenantResolver struct {
	manager  *Manager
	tenantID string
}

func (r *tenantResolver) Signer(ctx context.Context, keyID string) (ssh.Signer, error) {
	return r.manager.Signer(ctx, r.tenantID, keyID)
}

func redactKeyPair(kp *storage.KeyPair) *storage.KeyPair {
	cp := *kp
	cp.PrivateKeyPEM = ""
	return &cp
}
