package signingpolicy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// The six event kinds the signing-policy builder folds, decoded from logs
// of VoterRegistry, FlareSystemsCalculator, Relay and FlareSystemsManager.
// Each carries every input of the corresponding ABI event.

type RandomAcquisitionStarted struct {
	RewardEpochId int64
	Timestamp     uint64
}

type VotePowerBlockSelected struct {
	RewardEpochId  int64
	VotePowerBlock uint64
	Timestamp      uint64
}

type VoterRegistered struct {
	RewardEpochId           int64
	Voter                   common.Address
	SigningPolicyAddress    common.Address
	SubmitAddress           common.Address
	SubmitSignaturesAddress common.Address
	PublicKey               []byte
	RegistrationWeight      *big.Int
}

type VoterRegistrationInfo struct {
	RewardEpochId     int64
	Voter             common.Address
	DelegationAddress common.Address
	DelegationFeeBIPS uint16
	WNatWeight        *big.Int
	WNatCappedWeight  *big.Int
	NodeIDs           []string
	NodeWeights       []*big.Int
}

type VoterRemoved struct {
	RewardEpochId int64
	Voter         common.Address
}

type SigningPolicyInitialized struct {
	RewardEpochId      int64
	StartVotingRoundId uint32
	Threshold          uint16
	Seed               *big.Int
	Voters             []common.Address
	Weights            []uint16
	SigningPolicyBytes []byte
	Timestamp          uint64
}

// ProtocolMessageRelayed is decoded from the Relay contract during live
// ingestion (C6), not during signing-policy reconstruction. It lives here
// because it shares the Relay contract origin with SigningPolicyInitialized
// and both are produced by the same chain/contracts/relay package.
type ProtocolMessageRelayed struct {
	ProtocolId         uint8
	VotingRoundId      uint32
	IsSecureRandom     bool
	MerkleRoot         [32]byte
	Timestamp          uint64
}

// ToMessage returns the 32-byte hash that submitSignatures signatures for
// this round are computed over: keccak256(protocolId || votingRoundId ||
// isSecureRandom || merkleRoot), the wire layout Relay.sol packs the
// finalized message into.
func (p ProtocolMessageRelayed) ToMessage() []byte {
	buf := make([]byte, 0, 1+4+1+32)
	buf = append(buf, p.ProtocolId)
	buf = append(buf, byte(p.VotingRoundId>>24), byte(p.VotingRoundId>>16), byte(p.VotingRoundId>>8), byte(p.VotingRoundId))
	secure := byte(0)
	if p.IsSecureRandom {
		secure = 1
	}
	buf = append(buf, secure)
	buf = append(buf, p.MerkleRoot[:]...)
	return crypto.Keccak256(buf)
}

// AttestationRequest is decoded from the FdcHub contract during live
// ingestion.
type AttestationRequest struct {
	Data          []byte
	Timestamp     uint64
	VotingEpochId int64
	Block         uint64
	LogIndex      uint
}
