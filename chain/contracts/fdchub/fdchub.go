// Package fdchub is a hand-authored abigen-style binding for the FdcHub
// contract's AttestationRequest event.
package fdchub

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const fdcHubABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "data", "type": "bytes"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "AttestationRequest",
		"type": "event"
	}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(fdcHubABI))
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

// RawAttestationRequest is the contract-level decode: data + the on-chain
// request timestamp, with block/log-index context the caller (ingestion
// loop) fills in to derive the owning voting epoch.
type RawAttestationRequest struct {
	Data      []byte
	Timestamp uint64
}

func ParseAttestationRequest(log types.Log) (RawAttestationRequest, error) {
	var raw struct {
		Data      []byte
		Timestamp *big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&raw, "AttestationRequest", log.Data); err != nil {
		return RawAttestationRequest{}, errors.Wrap(err, "unpack AttestationRequest")
	}
	return RawAttestationRequest{Data: raw.Data, Timestamp: raw.Timestamp.Uint64()}, nil
}
