// Package voterregistry is a hand-authored abigen-style binding for the
// VoterRegistry contract's VoterRegistered/VoterRemoved events: a parsed
// ABI plus typed Parse<Event> methods, in the shape abigen output takes.
package voterregistry

import (
	"math/big"
	"strings"

	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const voterRegistryABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "voter", "type": "address"},
			{"indexed": false, "name": "signingPolicyAddress", "type": "address"},
			{"indexed": false, "name": "submitAddress", "type": "address"},
			{"indexed": false, "name": "submitSignaturesAddress", "type": "address"},
			{"indexed": false, "name": "publicKey", "type": "bytes"},
			{"indexed": false, "name": "registrationWeight", "type": "uint256"}
		],
		"name": "VoterRegistered",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "rewardEpochId", "type": "uint256"},
			{"indexed": false, "name": "voter", "type": "address"}
		],
		"name": "VoterRemoved",
		"type": "event"
	}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(voterRegistryABI))
	if err != nil {
		panic(err)
	}
	ABI = parsedABI
}

// ABI exposes the parsed contract ABI, mirroring abigen's <Contract>MetaData.
var ABI = parsedABI

// EventSignatures maps each event's topic0 to its name.
func EventSignatures() map[common.Hash]string {
	m := make(map[common.Hash]string, len(parsedABI.Events))
	for name, e := range parsedABI.Events {
		m[e.ID] = name
	}
	return m
}

func ParseVoterRegistered(log types.Log) (signingpolicy.VoterRegistered, error) {
	var raw struct {
		RewardEpochId           *big.Int
		Voter                   common.Address
		SigningPolicyAddress    common.Address
		SubmitAddress           common.Address
		SubmitSignaturesAddress common.Address
		PublicKey               []byte
		RegistrationWeight      *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "VoterRegistered", log.Data); err != nil {
		return signingpolicy.VoterRegistered{}, errors.Wrap(err, "unpack VoterRegistered")
	}
	return signingpolicy.VoterRegistered{
		RewardEpochId:           raw.RewardEpochId.Int64(),
		Voter:                   raw.Voter,
		SigningPolicyAddress:    raw.SigningPolicyAddress,
		SubmitAddress:           raw.SubmitAddress,
		SubmitSignaturesAddress: raw.SubmitSignaturesAddress,
		PublicKey:               raw.PublicKey,
		RegistrationWeight:      raw.RegistrationWeight,
	}, nil
}

func ParseVoterRemoved(log types.Log) (signingpolicy.VoterRemoved, error) {
	var raw struct {
		RewardEpochId *big.Int
		Voter         common.Address
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "VoterRemoved", log.Data); err != nil {
		return signingpolicy.VoterRemoved{}, errors.Wrap(err, "unpack VoterRemoved")
	}
	return signingpolicy.VoterRemoved{
		RewardEpochId: raw.RewardEpochId.Int64(),
		Voter:         raw.Voter,
	}, nil
}
