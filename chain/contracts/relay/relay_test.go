package relay

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestParseSigningPolicyInitialized(t *testing.T) {
	voters := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	weights := []uint16{100, 200}
	packed, err := ABI.Events["SigningPolicyInitialized"].Inputs.Pack(
		big.NewInt(7), uint32(1000), uint16(5000), big.NewInt(42), voters, weights, []byte{0xAB}, big.NewInt(1690000000),
	)
	require.NoError(t, err)

	sp, err := ParseSigningPolicyInitialized(types.Log{Data: packed})
	require.NoError(t, err)

	require.Equal(t, int64(7), sp.RewardEpochId)
	require.EqualValues(t, 1000, sp.StartVotingRoundId)
	require.EqualValues(t, 5000, sp.Threshold)
	require.Equal(t, big.NewInt(42), sp.Seed)
	require.Equal(t, voters, sp.Voters)
	require.Equal(t, weights, sp.Weights)
	require.Equal(t, []byte{0xAB}, sp.SigningPolicyBytes)
	require.EqualValues(t, 1690000000, sp.Timestamp)
}

func TestParseProtocolMessageRelayed(t *testing.T) {
	var root [32]byte
	root[0] = 0xFF
	packed, err := ABI.Events["ProtocolMessageRelayed"].Inputs.Pack(
		uint8(100), uint32(55), true, root, big.NewInt(1700000000),
	)
	require.NoError(t, err)

	pmr, err := ParseProtocolMessageRelayed(types.Log{Data: packed})
	require.NoError(t, err)

	require.EqualValues(t, 100, pmr.ProtocolId)
	require.EqualValues(t, 55, pmr.VotingRoundId)
	require.True(t, pmr.IsSecureRandom)
	require.Equal(t, root, pmr.MerkleRoot)
	require.EqualValues(t, 1700000000, pmr.Timestamp)
}

func TestEventSignatures_MapsTopic0ToName(t *testing.T) {
	sigs := EventSignatures()
	id, err := EventIDFromABI("ProtocolMessageRelayed")
	require.NoError(t, err)
	require.Equal(t, "ProtocolMessageRelayed", sigs[id])
}

func TestEventIDFromABI_UnknownEventErrors(t *testing.T) {
	_, err := EventIDFromABI("NotAnEvent")
	require.Error(t, err)
}
