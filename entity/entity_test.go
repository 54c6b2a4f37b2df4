package entity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func sampleEntity(n byte) *Entity {
	return &Entity{
		IdentityAddress:         addr(n),
		SubmitAddress:           addr(n + 1),
		SubmitSignaturesAddress: addr(n + 2),
		SigningPolicyAddress:    addr(n + 3),
		DelegationAddress:       addr(n + 4),
	}
}

func TestEntityMapper_InsertResolvesAllRoles(t *testing.T) {
	m := NewEntityMapper()
	e := sampleEntity(10)

	require.NoError(t, m.Insert(e))

	require.Same(t, e, m.ByIdentityAddress[e.IdentityAddress])
	require.Same(t, e, m.BySubmitAddress[e.SubmitAddress])
	require.Same(t, e, m.BySubmitSignaturesAddress[e.SubmitSignaturesAddress])
	require.Same(t, e, m.BySigningPolicyAddress[e.SigningPolicyAddress])
	require.Same(t, e, m.ByDelegationAddress[e.DelegationAddress])
	for _, a := range []common.Address{e.IdentityAddress, e.SubmitAddress, e.SubmitSignaturesAddress, e.SigningPolicyAddress, e.DelegationAddress} {
		require.Same(t, e, m.ByOmni[a])
	}
}

func TestEntityMapper_InsertRejectsDuplicateAddress(t *testing.T) {
	m := NewEntityMapper()
	e1 := sampleEntity(10)
	require.NoError(t, m.Insert(e1))

	e2 := sampleEntity(20)
	e2.SubmitAddress = e1.IdentityAddress // collides with e1's identity address

	err := m.Insert(e2)
	require.Error(t, err)

	var dup *DuplicateAddressError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, e1.IdentityAddress, dup.Address)

	// a partial insert must not have happened
	require.NotContains(t, m.ByDelegationAddress, e2.DelegationAddress)
}

func TestEntityMapper_InsertRejectsSelfCollision(t *testing.T) {
	m := NewEntityMapper()
	e := sampleEntity(10)
	e.SubmitAddress = e.IdentityAddress // same entity, two roles, same address

	require.Error(t, m.Insert(e))
}
