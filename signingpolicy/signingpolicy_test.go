package signingpolicy

import (
	"math/big"
	"testing"

	"flare-observer/epoch"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func rewardEpoch(id int64) epoch.RewardEpoch {
	f := &epoch.RewardEpochFactory{FirstEpochStartS: 0, EpochDurationS: 302400}
	return f.FromID(id)
}

func buildValidPolicy(t *testing.T, id int64) *SigningPolicy {
	t.Helper()
	b := NewBuilder().ForEpoch(rewardEpoch(id))

	require.NoError(t, b.Add(RandomAcquisitionStarted{RewardEpochId: id, Timestamp: 1}))
	require.NoError(t, b.Add(VotePowerBlockSelected{RewardEpochId: id, VotePowerBlock: 100, Timestamp: 2}))
	require.NoError(t, b.Add(VoterRegistered{
		RewardEpochId:           id,
		Voter:                   addr(1),
		SigningPolicyAddress:    addr(2),
		SubmitAddress:           addr(3),
		SubmitSignaturesAddress: addr(4),
		RegistrationWeight:      big.NewInt(10),
	}))
	require.NoError(t, b.Add(VoterRegistrationInfo{
		RewardEpochId:     id,
		Voter:             addr(1),
		DelegationAddress: addr(5),
		WNatWeight:        big.NewInt(10),
		WNatCappedWeight:  big.NewInt(10),
	}))
	require.NoError(t, b.Add(SigningPolicyInitialized{
		RewardEpochId:      id,
		StartVotingRoundId: 1000,
		Threshold:          5000,
		Seed:               big.NewInt(42),
		Voters:             []common.Address{addr(2)},
		Weights:            []uint16{10000},
		SigningPolicyBytes: []byte{0xAB},
	}))

	sp, err := b.Build()
	require.NoError(t, err)
	return sp
}

func TestBuilder_BuildProducesEntityMapping(t *testing.T) {
	sp := buildValidPolicy(t, 7)

	require.Equal(t, int64(7), sp.RewardEpoch.Id)
	require.Equal(t, uint64(100), sp.VotePowerBlock)
	require.Equal(t, uint32(1000), sp.StartVotingRound)
	require.Len(t, sp.Entities, 1)

	e, ok := sp.EntityMapper.ByIdentityAddress[addr(1)]
	require.True(t, ok)
	require.Equal(t, uint16(10000), e.NormalizedWeight)
}

func TestBuilder_RejectsDuplicateSingleton(t *testing.T) {
	b := NewBuilder().ForEpoch(rewardEpoch(1))
	require.NoError(t, b.Add(RandomAcquisitionStarted{RewardEpochId: 1}))

	err := b.Add(RandomAcquisitionStarted{RewardEpochId: 1})
	require.Error(t, err)

	var inv *InvariantViolationError
	require.ErrorAs(t, err, &inv)
}

func TestBuilder_BuildFailsOnMissingEvents(t *testing.T) {
	b := NewBuilder().ForEpoch(rewardEpoch(1))
	_, err := b.Build()
	require.Error(t, err)
}

func TestBuilder_BuildFailsOnUnregisteredSigningPolicyVoter(t *testing.T) {
	b := NewBuilder().ForEpoch(rewardEpoch(1))
	require.NoError(t, b.Add(RandomAcquisitionStarted{RewardEpochId: 1}))
	require.NoError(t, b.Add(VotePowerBlockSelected{RewardEpochId: 1, VotePowerBlock: 1}))
	require.NoError(t, b.Add(SigningPolicyInitialized{
		RewardEpochId:      1,
		Voters:             []common.Address{addr(99)},
		Weights:            []uint16{1},
		Seed:               big.NewInt(0),
		SigningPolicyBytes: nil,
	}))

	_, err := b.Build()
	require.Error(t, err)
}

func TestHistory_AddAndLookup(t *testing.T) {
	h := NewHistory()
	sp0 := buildValidPolicy(t, 0)
	sp0.StartVotingRound = 0
	sp1 := buildValidPolicy(t, 1)
	sp1.StartVotingRound = 1000

	require.NoError(t, h.Add(sp0))
	require.NoError(t, h.Add(sp1))

	require.Same(t, sp0, h.ForVotingRound(500))
	require.Same(t, sp1, h.ForVotingRound(1000))
	require.Same(t, sp1, h.ForVotingRound(5000))
	require.Same(t, sp0, h.First())
}

func TestHistory_AddRejectsNonConsecutiveRewardEpoch(t *testing.T) {
	h := NewHistory()
	sp0 := buildValidPolicy(t, 0)
	require.NoError(t, h.Add(sp0))

	sp2 := buildValidPolicy(t, 2)
	require.Error(t, h.Add(sp2))
}

func TestHistory_Prune(t *testing.T) {
	h := NewHistory()
	sp0 := buildValidPolicy(t, 0)
	sp0.StartVotingRound = 0
	sp1 := buildValidPolicy(t, 1)
	sp1.StartVotingRound = 1000

	require.NoError(t, h.Add(sp0))
	require.NoError(t, h.Add(sp1))

	dropped := h.Prune(500)
	require.Equal(t, []int64{0}, dropped)
	require.Same(t, sp1, h.First())
}
