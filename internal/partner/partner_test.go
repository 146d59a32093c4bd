package partner

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/internal/storage/memory"
	"github.com/sirosfoundation/go-edi/pkg/as2"
	"github.com/sirosfoundation/go-edi/pkg/sftpx"
)

type fixture struct {
	svc  *Service
	as2  *as2.Client
	sftp *sftpx.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	as2Client := as2.NewClient(&as2.ClientConfig{LocalAS2ID: "LOCAL", LocalDomain: "edi.example.com"})
	sftpClient := sftpx.NewClient(nil)
	return &fixture{
		svc:  NewService(memory.NewStore(), as2Client, sftpClient, nil),
		as2:  as2Client,
		sftp: sftpClient,
	}
}

func samplePartner() *storage.TradingPartner {
	return &storage.TradingPartner{
		TenantID: "t1",
		Code:     "ACME",
		Name:     "Acme Corp",
		Active:   true,
		AS2: &as2.PartnerConfig{
			AS2ID:  "ACME-AS2",
			URL:    "https://as2.acme.example/receive",
			Active: true,
		},
		SFTP: &sftpx.PartnerConfig{
			Host:     "sftp.acme.example",
			Username: "edi",
			Password: "secret",
			Active:   true,
		},
	}
}

func TestCreateRegistersTransports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, samplePartner())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	as2Cfg, err := f.as2.Registry().Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME-AS2", as2Cfg.AS2ID)
	assert.True(t, as2Cfg.Active)

	sftpCfg, err := f.sftp.Registry().Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sftp.acme.example", sftpCfg.Host)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := samplePartner()
	p.TenantID = ""
	_, err := f.svc.Create(ctx, p)
	assert.Error(t, err)

	p = samplePartner()
	p.Code = ""
	_, err = f.svc.Create(ctx, p)
	assert.Error(t, err)
}

func TestInactivePartnerDisablesProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := samplePartner()
	p.Active = false
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	as2Cfg, err := f.as2.Registry().Get(created.ID)
	require.NoError(t, err)
	assert.False(t, as2Cfg.Active, "aggregate inactive overrides profile active")
}

func TestUpdateReplacesAndDeregistersDroppedProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, samplePartner())
	require.NoError(t, err)

	created.Name = "Acme Corporation"
	created.SFTP = nil
	updated, err := f.svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", updated.Name)

	_, err = f.sftp.Registry().Get(created.ID)
	assert.ErrorIs(t, err, sftpx.ErrPartnerNotFound)
	_, err = f.as2.Registry().Get(created.ID)
	assert.NoError(t, err)

	stored, err := f.svc.Get(ctx, "t1", created.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SFTP)
}

func TestUpdateUnknownPartner(t *testing.T) {
	f := newFixture(t)
	p := samplePartner()
	p.ID = "ghost"
	_, err := f.svc.Update(context.Background(), p)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestDeleteDeregisters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, samplePartner())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "t1", created.ID))

	_, err = f.svc.Get(ctx, "t1", created.ID)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
	_, err = f.as2.Registry().Get(created.ID)
	assert.ErrorIs(t, err, as2.ErrPartnerNotFound)
	_, err = f.sftp.Registry().Get(created.ID)
	assert.ErrorIs(t, err, sftpx.ErrPartnerNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, "t1", created.ID), ErrPartnerNotFound)
}

func TestGetByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, samplePartner())
	require.NoError(t, err)

	got, err := f.svc.GetByCode(ctx, "t1", "ACME")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.GetByCode(ctx, "t1", "NOPE")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestTestConnectionAS2(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	f := newFixture(t)
	ctx := context.Background()

	p := samplePartner()
	p.AS2.URL = srv.URL
	p.SFTP = nil
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	health, err := f.svc.TestConnection(ctx, "t1", created.ID, storage.ProtocolAS2)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.GreaterOrEqual(t, health.LatencyMs, int64(0))

	_, err = f.svc.TestConnection(ctx, "t1", created.ID, storage.ProtocolSFTP)
	assert.ErrorIs(t, err, ErrNoSuchProtocol)
}

func TestTestConnectionFailureInResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := samplePartner()
	p.AS2.URL = "https://127.0.0.1:1/unreachable"
	p.SFTP = nil
	created, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	health, err := f.svc.TestConnection(ctx, "t1", created.ID, storage.ProtocolAS2)
	require.NoError(t, err, "transport failure is data, not an error")
	assert.False(t, health.Healthy)
	assert.NotEmpty(t, health.Error)
}
