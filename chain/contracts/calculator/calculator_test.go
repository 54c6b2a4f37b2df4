package calculator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestParseVoterRegistrationInfo(t *testing.T) {
	voter := common.HexToAddress("0x01")
	delegation := common.HexToAddress("0x02")
	nodeIDs := []string{"node-a", "node-b"}
	nodeWeights := []*big.Int{big.NewInt(10), big.NewInt(20)}

	packed, err := ABI.Events["VoterRegistrationInfo"].Inputs.Pack(
		big.NewInt(4), voter, delegation, uint16(250), big.NewInt(1000), big.NewInt(900), nodeIDs, nodeWeights,
	)
	require.NoError(t, err)

	info, err := ParseVoterRegistrationInfo(types.Log{Data: packed})
	require.NoError(t, err)

	require.Equal(t, int64(4), info.RewardEpochId)
	require.Equal(t, voter, info.Voter)
	require.Equal(t, delegation, info.DelegationAddress)
	require.EqualValues(t, 250, info.DelegationFeeBIPS)
	require.Equal(t, big.NewInt(1000), info.WNatWeight)
	require.Equal(t, big.NewInt(900), info.WNatCappedWeight)
	require.Equal(t, nodeIDs, info.NodeIDs)
	require.Equal(t, nodeWeights, info.NodeWeights)
}
