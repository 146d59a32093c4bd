package sftpx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(id string) PartnerConfig {
	return PartnerConfig{
		PartnerID: id,
		Host:      "sftp.partner.example",
		Username:  "edi",
		Password:  "secret",
		Active:    true,
	}
}

func TestRegistryRegisterGetRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(validConfig("p1")))

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "sftp.partner.example", p.Host)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrPartnerNotFound)

	r.Remove("p1")
	_, err = r.Get("p1")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	var verr *ValidationError

	err := r.Register(PartnerConfig{Host: "h", Username: "u"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "partnerId", verr.Field)

	err = r.Register(PartnerConfig{PartnerID: "p", Username: "u"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "host", verr.Field)

	err = r.Register(PartnerConfig{PartnerID: "p", Host: "h"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Field)
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	first := validConfig("p1")
	require.NoError(t, r.Register(first))

	second := validConfig("p1")
	second.Host = "replacement.example"
	second.Active = false
	require.NoError(t, r.Register(second))

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "replacement.example", p.Host)
	assert.False(t, p.Active)
	assert.Len(t, r.List(), 1)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(validConfig(id)))
	}
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].PartnerID)
	assert.Equal(t, "zeta", list[2].PartnerID)
}

func TestRegistryResolveActive(t *testing.T) {
	r := NewRegistry()
	idle := validConfig("idle")
	idle.Active = false
	require.NoError(t, r.Register(idle))

	_, err := r.resolveActive("idle")
	assert.ErrorIs(t, err, ErrPartnerInactive)
	assert.Contains(t, err.Error(), "inactive")

	_, err = r.resolveActive("ghost")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestAddrDefaultPort(t *testing.T) {
	p := PartnerConfig{Host: "sftp.partner.example"}
	assert.Equal(t, "sftp.partner.example:22", p.Addr())
	p.Port = 2222
	assert.Equal(t, "sftp.partner.example:2222", p.Addr())
}
