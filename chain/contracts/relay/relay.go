// Package relay is a hand-authored abigen-style binding for the Relay
// contract's SigningPolicyInitialized and ProtocolMessageRelayed events.
package relay

import (
	"math/big"
	"strings"

	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const relayABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "startVotingRoundId", "type": "uint32"},
			{"indexed": false, "name": "threshold", "type": "uint16"},
			{"indexed": false, "name": "seed", "type": "uint256"},
			{"indexed": false, "name": "voters", "type": "address[]"},
			{"indexed": false, "name": "weights", "type": "uint16[]"},
			{"indexed": false, "name": "signingPolicyBytes", "type": "bytes"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "SigningPolicyInitialized",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "protocolId", "type": "uint8"},
			{"indexed": false, "name": "votingRoundId", "type": "uint32"},
			{"indexed": false, "name": "isSecureRandom", "type": "bool"},
			{"indexed": false, "name": "merkleRoot", "type": "bytes32"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "ProtocolMessageRelayed",
		"type": "event"
	}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(relayABI))
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

func ParseSigningPolicyInitialized(log types.Log) (signingpolicy.SigningPolicyInitialized, error) {
	var raw struct {
		RewardEpochId      *big.Int
		StartVotingRoundId uint32
		Threshold          uint16
		Seed               *big.Int
		Voters             []common.Address
		Weights            []uint16
		SigningPolicyBytes []byte
		Timestamp          *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "SigningPolicyInitialized", log.Data); err != nil {
		return signingpolicy.SigningPolicyInitialized{}, errors.Wrap(err, "unpack SigningPolicyInitialized")
	}
	return signingpolicy.SigningPolicyInitialized{
		RewardEpochId:      raw.RewardEpochId.Int64(),
		StartVotingRoundId: raw.StartVotingRoundId,
		Threshold:          raw.Threshold,
		Seed:               raw.Seed,
		Voters:             raw.Voters,
		Weights:            raw.Weights,
		SigningPolicyBytes: raw.SigningPolicyBytes,
		Timestamp:          raw.Timestamp.Uint64(),
	}, nil
}

func ParseProtocolMessageRelayed(log types.Log) (signingpolicy.ProtocolMessageRelayed, error) {
	var raw struct {
		ProtocolId     uint8
		VotingRoundId  uint32
		IsSecureRandom bool
		MerkleRoot     [32]byte
		Timestamp      *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "ProtocolMessageRelayed", log.Data); err != nil {
		return signingpolicy.ProtocolMessageRelayed{}, errors.Wrap(err, "unpack ProtocolMessageRelayed")
	}
	return signingpolicy.ProtocolMessageRelayed{
		ProtocolId:     raw.ProtocolId,
		VotingRoundId:  raw.VotingRoundId,
		IsSecureRandom: raw.IsSecureRandom,
		MerkleRoot:     raw.MerkleRoot,
		Timestamp:      raw.Timestamp.Uint64(),
	}, nil
}

// EventIDFromABI looks up an event's topic0, for callers building
// single-event listeners.
func EventIDFromABI(name string) (common.Hash, error) {
	e, ok := parsedABI.Events[name]
	if !ok {
		return common.Hash{}, errors.Errorf("unknown event %q", name)
	}
	return e.ID, nil
}
