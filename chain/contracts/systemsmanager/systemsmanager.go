// Package systemsmanager is a hand-authored abigen-style binding for the
// FlareSystemsManager contract's RandomAcquisitionStarted and
// VotePowerBlockSelected events.
package systemsmanager

import (
	"math/big"
	"strings"

	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const systemsManagerABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "RandomAcquisitionStarted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "votePowerBlock", "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "VotePowerBlockSelected",
		"type": "event"
	}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(systemsManagerABI))
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

func ParseRandomAcquisitionStarted(log types.Log) (signingpolicy.RandomAcquisitionStarted, error) {
	var raw struct {
		RewardEpochId *big.Int
		Timestamp     *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "RandomAcquisitionStarted", log.Data); err != nil {
		return signingpolicy.RandomAcquisitionStarted{}, errors.Wrap(err, "unpack RandomAcquisitionStarted")
	}
	return signingpolicy.RandomAcquisitionStarted{
		RewardEpochId: raw.RewardEpochId.Int64(),
		Timestamp:     raw.Timestamp.Uint64(),
	}, nil
}

func ParseVotePowerBlockSelected(log types.Log) (signingpolicy.VotePowerBlockSelected, error) {
	var raw struct {
		RewardEpochId  *big.Int
		VotePowerBlock *big.Int
		Timestamp      *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "VotePowerBlockSelected", log.Data); err != nil {
		return signingpolicy.VotePowerBlockSelected{}, errors.Wrap(err, "unpack VotePowerBlockSelected")
	}
	return signingpolicy.VotePowerBlockSelected{
		RewardEpochId:  raw.RewardEpochId.Int64(),
		VotePowerBlock: raw.VotePowerBlock.Uint64(),
		Timestamp:      raw.Timestamp.Uint64(),
	}, nil
}
