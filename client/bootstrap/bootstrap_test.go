package bootstrap

import (
	"context"
	"math/big"
	"testing"

	"flare-observer/chain"
	"flare-observer/chain/contracts/calculator"
	"flare-observer/chain/contracts/relay"
	"flare-observer/chain/contracts/systemsmanager"
	"flare-observer/chain/contracts/voterregistry"
	"flare-observer/epoch"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// identityTimestampClient maps every block number directly to the same
// value as its timestamp, so findBlockForTimestamp converges in a single
// step without needing a stepping search to be simulated.
type identityTimestampClient struct {
	logs []types.Log
}

func (c *identityTimestampClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (c *identityTimestampClient) BlockByNumber(ctx context.Context, number uint64, fullTransactions bool) (*chain.Block, error) {
	return &chain.Block{Number: number, Timestamp: number}, nil
}

func (c *identityTimestampClient) FilterLogs(ctx context.Context, addresses []common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	return c.logs, nil
}

func TestFindVoterRegistrationBlocks_ConvergesImmediatelyOnIdentityMapping(t *testing.T) {
	c := &identityTimestampClient{}

	// reward epoch starts at unix ts 20000
	rf := &epoch.RewardEpochFactory{FirstEpochStartS: 20000, EpochDurationS: 302400}
	target := rf.FromID(0)

	start, end, err := FindVoterRegistrationBlocks(context.Background(), c, 20000, 20000, target)
	require.NoError(t, err)
	require.EqualValues(t, 20000-9000, start)
	require.EqualValues(t, 20000-3600, end)
}

func topic0(id common.Hash) []common.Hash { return []common.Hash{id} }

func TestGetSigningPolicyEvents_FoldsLogsIntoSigningPolicy(t *testing.T) {
	rewardEpochID := int64(3)

	randomStarted, err := systemsmanager.ABI.Events["RandomAcquisitionStarted"].Inputs.Pack(big.NewInt(rewardEpochID), big.NewInt(1))
	require.NoError(t, err)
	votePower, err := systemsmanager.ABI.Events["VotePowerBlockSelected"].Inputs.Pack(big.NewInt(rewardEpochID), big.NewInt(100), big.NewInt(2))
	require.NoError(t, err)

	voter := common.HexToAddress("0x01")
	signingAddr := common.HexToAddress("0x02")
	submitAddr := common.HexToAddress("0x03")
	submitSigAddr := common.HexToAddress("0x04")
	voterRegistered, err := voterregistry.ABI.Events["VoterRegistered"].Inputs.Pack(
		big.NewInt(rewardEpochID), voter, signingAddr, submitAddr, submitSigAddr, []byte{}, big.NewInt(10),
	)
	require.NoError(t, err)

	registrationInfo, err := calculator.ABI.Events["VoterRegistrationInfo"].Inputs.Pack(
		big.NewInt(rewardEpochID), voter, common.HexToAddress("0x05"), uint16(0), big.NewInt(10), big.NewInt(10),
		[]string{}, []*big.Int{},
	)
	require.NoError(t, err)

	signingPolicyInitialized, err := relay.ABI.Events["SigningPolicyInitialized"].Inputs.Pack(
		big.NewInt(rewardEpochID), uint32(1000), uint16(5000), big.NewInt(42),
		[]common.Address{signingAddr}, []uint16{10000}, []byte{0xAB}, big.NewInt(3),
	)
	require.NoError(t, err)

	logs := []types.Log{
		{Topics: topic0(systemsmanager.ABI.Events["RandomAcquisitionStarted"].ID), Data: randomStarted},
		{Topics: topic0(systemsmanager.ABI.Events["VotePowerBlockSelected"].ID), Data: votePower},
		{Topics: topic0(voterregistry.ABI.Events["VoterRegistered"].ID), Data: voterRegistered},
		{Topics: topic0(calculator.ABI.Events["VoterRegistrationInfo"].ID), Data: registrationInfo},
		{Topics: topic0(relay.ABI.Events["SigningPolicyInitialized"].ID), Data: signingPolicyInitialized},
	}

	c := &identityTimestampClient{logs: logs}
	rf := &epoch.RewardEpochFactory{FirstEpochStartS: 0, EpochDurationS: 302400}
	re := rf.FromID(rewardEpochID)

	sp, err := GetSigningPolicyEvents(context.Background(), c, Addresses{}, 0, 100, re)
	require.NoError(t, err)
	require.Equal(t, rewardEpochID, sp.RewardEpoch.Id)
	require.EqualValues(t, 100, sp.VotePowerBlock)
	require.EqualValues(t, 1000, sp.StartVotingRound)
	require.Len(t, sp.Entities, 1)
}
