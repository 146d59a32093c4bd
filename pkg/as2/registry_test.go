package as2

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterGetRemove(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(PartnerConfig{PartnerID: "p1", AS2ID: "P1-AS2", Active: true}))

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "P1-AS2", p.AS2ID)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrPartnerNotFound)

	r.Remove("p1")
	_, err = r.Get("p1")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(PartnerConfig{PartnerID: "p1", AS2ID: "OLD", Active: true}))
	require.NoError(t, r.Register(PartnerConfig{PartnerID: "p1", AS2ID: "NEW", Active: false}))

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "NEW", p.AS2ID)
	assert.False(t, p.Active)
	assert.Len(t, r.List(), 1)
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()

	var verr *ValidationError
	err := r.Register(PartnerConfig{AS2ID: "X"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	err = r.Register(PartnerConfig{PartnerID: "p1"})
	assert.Error(t, err)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(PartnerConfig{PartnerID: id, AS2ID: id}))
	}
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].PartnerID)
	assert.Equal(t, "zeta", list[2].PartnerID)
}

func TestRegistryResolveActive(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(PartnerConfig{PartnerID: "idle", AS2ID: "IDLE"}))

	_, err := r.resolveActive("idle")
	assert.ErrorIs(t, err, ErrPartnerInactive)
	assert.Contains(t, err.Error(), "inactive")

	_, err = r.resolveActive("ghost")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistryLocalProfiles(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterLocal(LocalProfile{ProfileID: "main", AS2ID: "LOCAL-MAIN"}))
	require.NoError(t, r.RegisterLocal(LocalProfile{ProfileID: "alt", AS2ID: "LOCAL-ALT"}))

	p, err := r.LocalByAS2ID("LOCAL-ALT")
	require.NoError(t, err)
	assert.Equal(t, "alt", p.ProfileID)

	_, err = r.LocalByAS2ID("STRANGER")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.Len(t, r.ListLocals(), 2)
	r.RemoveLocal("alt")
	assert.Len(t, r.ListLocals(), 1)
}
