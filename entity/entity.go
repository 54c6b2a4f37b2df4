// Package entity models registered voters (C2): the five-address Entity
// record and the EntityMapper that resolves any of those addresses back to
// its Entity in O(1).
package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Node is one FTSO/FDC data provider node backing an Entity's vote power.
type Node struct {
	NodeID string
	Weight *big.Int
}

// Entity is one registered voter, keyed by five distinct checksum
// addresses. Immutable once constructed.
type Entity struct {
	IdentityAddress         common.Address
	SubmitAddress           common.Address
	SubmitSignaturesAddress common.Address
	SigningPolicyAddress    common.Address
	DelegationAddress       common.Address

	PublicKey []byte
	Nodes     []Node

	DelegationFeeBIPS uint16

	WNatWeight        *big.Int
	WNatCappedWeight  *big.Int
	RegistrationWeight *big.Int

	// NormalizedWeight is the weight assigned to this entity in the
	// SigningPolicyInitialized event (signing_policy_initialized.weights[i]).
	NormalizedWeight uint16
}

// DuplicateAddressError reports that an address was inserted into an
// EntityMapper under more than one role, or by more than one entity.
type DuplicateAddressError struct {
	Address common.Address
}

func (e *DuplicateAddressError) Error() string {
	return fmt.Sprintf("address %s already registered to a different entity", e.Address.Hex())
}

// EntityMapper resolves any of an Entity's five role addresses to that
// Entity. ByOmni unions all five; membership in it is the predicate "this
// address belongs to some registered voter".
type EntityMapper struct {
	ByIdentityAddress         map[common.Address]*Entity
	BySubmitAddress           map[common.Address]*Entity
	BySubmitSignaturesAddress map[common.Address]*Entity
	BySigningPolicyAddress    map[common.Address]*Entity
	ByDelegationAddress       map[common.Address]*Entity
	ByOmni                    map[common.Address]*Entity
}

func NewEntityMapper() *EntityMapper {
	return &EntityMapper{
		ByIdentityAddress:         make(map[common.Address]*Entity),
		BySubmitAddress:           make(map[common.Address]*Entity),
		BySubmitSignaturesAddress: make(map[common.Address]*Entity),
		BySigningPolicyAddress:    make(map[common.Address]*Entity),
		ByDelegationAddress:       make(map[common.Address]*Entity),
		ByOmni:                    make(map[common.Address]*Entity),
	}
}

// Insert registers e under all five of its role addresses. It fails if any
// of those addresses is already registered (to this or another entity),
// enforcing pairwise uniqueness across all role addresses.
func (m *EntityMapper) Insert(e *Entity) error {
	addresses := [5]common.Address{
		e.IdentityAddress,
		e.SubmitAddress,
		e.SubmitSignaturesAddress,
		e.SigningPolicyAddress,
		e.DelegationAddress,
	}
	seen := make(map[common.Address]struct{}, len(addresses))
	for _, a := range addresses {
		if _, ok := m.ByOmni[a]; ok {
			return &DuplicateAddressError{Address: a}
		}
		if _, ok := seen[a]; ok {
			return &DuplicateAddressError{Address: a}
		}
		seen[a] = struct{}{}
	}

	m.ByIdentityAddress[e.IdentityAddress] = e
	m.BySubmitAddress[e.SubmitAddress] = e
	m.BySubmitSignaturesAddress[e.SubmitSignaturesAddress] = e
	m.BySigningPolicyAddress[e.SigningPolicyAddress] = e
	m.ByDelegationAddress[e.DelegationAddress] = e

	for _, a := range addresses {
		m.ByOmni[a] = e
	}
	return nil
}
