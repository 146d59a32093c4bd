package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedPEM(t *testing.T, cn string, notAfter time.Time) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestImportCertificate(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	pemData := selfSignedPEM(t, "as2.partner.example", time.Now().Add(365*24*time.Hour))
	cert, err := m.ImportCertificate(ctx, "t1", "partner-tls", pemData)
	require.NoError(t, err)
	assert.Contains(t, cert.Subject, "as2.partner.example")
	assert.Len(t, cert.Fingerprint, 64, "sha-256 hex")

	got, err := m.GetCertificate(ctx, "t1", cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Fingerprint, got.Fingerprint)
}

func TestImportCertificateRejectsNonCertPEM(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.ImportCertificate(context.Background(), "t1", "bad", "plain text")
	assert.Error(t, err)
}

func TestExpiringWithin(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.ImportCertificate(ctx, "t1", "soon",
		selfSignedPEM(t, "soon.example", time.Now().Add(10*24*time.Hour)))
	require.NoError(t, err)
	_, err = m.ImportCertificate(ctx, "t1", "later",
		selfSignedPEM(t, "later.example", time.Now().Add(300*24*time.Hour)))
	require.NoError(t, err)

	expiring, err := m.ExpiringWithin(ctx, "t1", 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "soon", expiring[0].Name)

	all, err := m.ExpiringWithin(ctx, "t1", 400*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteCertificate(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	cert, err := m.ImportCertificate(ctx, "t1", "c",
		selfSignedPEM(t, "c.example", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, m.DeleteCertificate(ctx, "t1", cert.ID))
	_, err = m.GetCertificate(ctx, "t1", cert.ID)
	assert.ErrorIs(t, err, ErrCertNotFound)
}
