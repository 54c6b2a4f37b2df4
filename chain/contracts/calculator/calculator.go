// Package calculator is a hand-authored abigen-style binding for the
// FlareSystemsCalculator contract's VoterRegistrationInfo event.
package calculator

import (
	"math/big"
	"strings"

	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const calculatorABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "voter", "type": "address"},
			{"indexed": false, "name": "delegationAddress", "type": "address"},
			{"indexed": false, "name": "delegationFeeBIPS", "type": "uint16"},
			{"indexed": false, "name": "wNatWeight", "type": "uint256"},
			{"indexed": false, "name": "wNatCappedWeight", "type": "uint256"},
			{"indexed": false, "name": "nodeIds", "type": "string[]"},
			{"indexed": false, "name": "nodeWeights", "type": "uint256[]"}
		],
		"name": "VoterRegistrationInfo",
		"type": "event"
	}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(calculatorABI))
	if err != nil {
		panic(err)
	}
	ABI = parsedABI
}

var ABI = parsedABI

func EventSignatures() map[common.Hash]string {
	m := make(map[common.Hash]string, len(parsedABI.Events))
	for name, e := range parsedABI.Events {
		m[e.ID] = name
	}
	return m
}

func ParseVoterRegistrationInfo(log types.Log) (signingpolicy.VoterRegistrationInfo, error) {
	var raw struct {
		RewardEpochId     *big.Int
		Voter             common.Address
		DelegationAddress common.Address
		DelegationFeeBIPS uint16
		WNatWeight        *big.Int
		WNatCappedWeight  *big.Int
		NodeIds           []string
		NodeWeights       []*big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "VoterRegistrationInfo", log.Data); err != nil {
		return signingpolicy.VoterRegistrationInfo{}, errors.Wrap(err, "unpack VoterRegistrationInfo")
	}
	return signingpolicy.VoterRegistrationInfo{
		RewardEpochId:     raw.RewardEpochId.Int64(),
		Voter:             raw.Voter,
		DelegationAddress: raw.DelegationAddress,
		DelegationFeeBIPS: raw.DelegationFeeBIPS,
		WNatWeight:        raw.WNatWeight,
		WNatCappedWeight:  raw.WNatCappedWeight,
		NodeIDs:           raw.NodeIds,
		NodeWeights:       raw.NodeWeights,
	}, nil
}
