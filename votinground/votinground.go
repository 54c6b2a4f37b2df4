// Package votinground holds the per-round accumulator state (C4) and its
// lifecycle manager (C5): lazily-created rounds, finalized on a
// time-based condition with a full voting-epoch grace period.
package votinground

import (
	"math/big"
	"sort"

	"flare-observer/entity"
	"flare-observer/epoch"
	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/common"
)

// Signature is a (v, r, s) secp256k1 signature as carried in
// submitSignatures payloads, hex-encoded the way the chain-facing parser
// produces it.
type Signature struct {
	V string
	R string
	S string
}

// FtsoSubmit1 is the parsed submit1 payload for the FTSO sub-protocol: a
// commitment to feed values revealed in the following epoch's submit2.
type FtsoSubmit1 struct {
	VotingRoundId uint32
	CommitHash    []byte
}

// FtsoSubmit2 is the parsed submit2 (reveal) payload. A nil entry in
// Values is the "None" sentinel a missing feed value decodes to.
type FtsoSubmit2 struct {
	VotingRoundId uint32
	Values        []*big.Int
}

// FdcSubmit1 is the parsed submit1 payload for the FDC sub-protocol.
// Presence alone drives validation; no fields are consulted beyond the
// voting round binding.
type FdcSubmit1 struct {
	VotingRoundId uint32
}

// FdcSubmit2 is the parsed submit2 payload: a bit vector confirming which
// attestation requests this voter observed and agrees were valid.
type FdcSubmit2 struct {
	VotingRoundId    uint32
	NumberOfRequests uint16
	BitVector        []bool
}

// SubmitSignatures is the parsed submitSignatures payload, shared by both
// protocols. UnsignedMessage is only populated for FDC, where it doubles
// as the consensus-bitvote tally key.
type SubmitSignatures struct {
	VotingRoundId   uint32
	ProtocolId      uint8
	Signature       Signature
	UnsignedMessage []byte
}

// WTxData is the wrapped transaction projection the ingestion loop builds
// for every transaction it inspects.
type WTxData struct {
	Hash             common.Hash
	To               *common.Address
	Input            []byte
	BlockNumber      uint64
	Timestamp        int64
	TransactionIndex uint
	From             common.Address
	Value            *big.Int
}

// IsFirstOrSecond reports whether this transaction occupied block slot 0
// or 1. Unused by any validator today; kept for future block-ordering
// checks.
func (w WTxData) IsFirstOrSecond() bool {
	return w.TransactionIndex == 0 || w.TransactionIndex == 1
}

// WParsedPayload pairs a parsed submission payload with the transaction it
// came from.
type WParsedPayload[T any] struct {
	Payload T
	Tx      WTxData
}

// WParsedPayloadList is an append-only list of parsed payloads for one
// identity, within one protocol submission slot.
type WParsedPayloadList[T any] struct {
	Items []WParsedPayload[T]
}

// ExtractLatest returns the element whose transaction timestamp is
// strictly inside [start, stop) and maximal among such elements, or false
// if none qualifies.
func (l *WParsedPayloadList[T]) ExtractLatest(start, stop int64) (WParsedPayload[T], bool) {
	var latest WParsedPayload[T]
	found := false

	for _, wpp := range l.Items {
		ts := wpp.Tx.Timestamp
		if ts < start || ts >= stop {
			continue
		}
		if !found || ts > latest.Tx.Timestamp {
			latest = wpp
			found = true
		}
	}
	return latest, found
}

// ParsedPayloadMapper maps an identity address to its WParsedPayloadList.
// Missing keys behave as empty lists: Get never returns nil and never
// panics on an unknown identity.
type ParsedPayloadMapper[T any] struct {
	byIdentity map[common.Address]*WParsedPayloadList[T]
}

func NewParsedPayloadMapper[T any]() *ParsedPayloadMapper[T] {
	return &ParsedPayloadMapper[T]{byIdentity: make(map[common.Address]*WParsedPayloadList[T])}
}

func (m *ParsedPayloadMapper[T]) Get(identity common.Address) *WParsedPayloadList[T] {
	l, ok := m.byIdentity[identity]
	if !ok {
		l = &WParsedPayloadList[T]{}
		m.byIdentity[identity] = l
	}
	return l
}

func (m *ParsedPayloadMapper[T]) Insert(e *entity.Entity, payload T, tx WTxData) {
	l := m.Get(e.IdentityAddress)
	l.Items = append(l.Items, WParsedPayload[T]{Payload: payload, Tx: tx})
}

// VotingRoundProtocol is the three submission buckets plus optional
// finalization for one protocol (FTSO or FDC), generic over the three
// payload kinds that protocol's submit1/submit2/submitSignatures carry.
type VotingRoundProtocol[S1, S2, SS any] struct {
	Submit1          *ParsedPayloadMapper[S1]
	Submit2          *ParsedPayloadMapper[S2]
	SubmitSignatures *ParsedPayloadMapper[SS]

	Finalization *signingpolicy.ProtocolMessageRelayed
}

func newVotingRoundProtocol[S1, S2, SS any]() VotingRoundProtocol[S1, S2, SS] {
	return VotingRoundProtocol[S1, S2, SS]{
		Submit1:          NewParsedPayloadMapper[S1](),
		Submit2:          NewParsedPayloadMapper[S2](),
		SubmitSignatures: NewParsedPayloadMapper[SS](),
	}
}

func (p *VotingRoundProtocol[S1, S2, SS]) InsertSubmit1(e *entity.Entity, payload S1, tx WTxData) {
	p.Submit1.Insert(e, payload, tx)
}

func (p *VotingRoundProtocol[S1, S2, SS]) InsertSubmit2(e *entity.Entity, payload S2, tx WTxData) {
	p.Submit2.Insert(e, payload, tx)
}

func (p *VotingRoundProtocol[S1, S2, SS]) InsertSubmitSignatures(e *entity.Entity, payload SS, tx WTxData) {
	p.SubmitSignatures.Insert(e, payload, tx)
}

// AttestationRequest is a renamed alias kept local to this package so
// consumers don't need to import signingpolicy just to hold one around.
type AttestationRequest = signingpolicy.AttestationRequest

// AttestationRequestMapper is the append-only list of attestation requests
// seen for an FDC round.
type AttestationRequestMapper struct {
	Agg []AttestationRequest
}

// Sorted returns the requests deduplicated by Data (first occurrence under
// (block, log index) ascending order wins), then reversed.
func (m *AttestationRequestMapper) Sorted() []AttestationRequest {
	ordered := make([]AttestationRequest, len(m.Agg))
	copy(ordered, m.Agg)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Block != ordered[j].Block {
			return ordered[i].Block < ordered[j].Block
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	seen := make(map[string]struct{}, len(ordered))
	result := make([]AttestationRequest, 0, len(ordered))
	for _, ar := range ordered {
		key := string(ar.Data)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ar)
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

type FtsoVotingRoundProtocol = VotingRoundProtocol[FtsoSubmit1, FtsoSubmit2, SubmitSignatures]
type FdcProtocolBase = VotingRoundProtocol[FdcSubmit1, FdcSubmit2, SubmitSignatures]

func NewFtsoVotingRoundProtocol() FtsoVotingRoundProtocol {
	return newVotingRoundProtocol[FtsoSubmit1, FtsoSubmit2, SubmitSignatures]()
}

// FdcVotingRoundProtocol extends VotingRoundProtocol with attestation
// requests and the consensus bitvote tally.
type FdcVotingRoundProtocol struct {
	FdcProtocolBase

	Requests         AttestationRequestMapper
	ConsensusBitvote map[string]int
}

func NewFdcVotingRoundProtocol() FdcVotingRoundProtocol {
	return FdcVotingRoundProtocol{
		FdcProtocolBase:  newVotingRoundProtocol[FdcSubmit1, FdcSubmit2, SubmitSignatures](),
		ConsensusBitvote: make(map[string]int),
	}
}

// VotingRound is the per-epoch accumulator for both protocols.
type VotingRound struct {
	VotingEpoch epoch.VotingEpoch
	Ftso        FtsoVotingRoundProtocol
	Fdc         FdcVotingRoundProtocol
}

func newVotingRound(v epoch.VotingEpoch) *VotingRound {
	return &VotingRound{
		VotingEpoch: v,
		Ftso:        NewFtsoVotingRoundProtocol(),
		Fdc:         NewFdcVotingRoundProtocol(),
	}
}

// Manager is the VotingRoundManager (C5): lazy round creation, GC of
// already-returned rounds, and time-based finalization with a full
// voting-epoch grace period.
type Manager struct {
	Finalized int64
	rounds    map[epoch.VotingEpoch]*VotingRound
	// order preserves insertion order so Finalize always walks rounds in
	// the order they were created, which a plain Go map cannot guarantee
	// on its own.
	order []epoch.VotingEpoch
}

func NewManager(finalized int64) *Manager {
	return &Manager{
		Finalized: finalized,
		rounds:    make(map[epoch.VotingEpoch]*VotingRound),
	}
}

// Get returns the round for v, creating it if absent.
func (m *Manager) Get(v epoch.VotingEpoch) *VotingRound {
	r, ok := m.rounds[v]
	if !ok {
		r = newVotingRound(v)
		m.rounds[v] = r
		m.order = append(m.order, v)
	}
	return r
}

// Finalize drops already-returned rounds, advances Finalized for rounds
// whose grace period (a full following voting epoch) has elapsed as of
// blockTimestamp, and returns those rounds in insertion order.
func (m *Manager) Finalize(blockTimestamp int64) []*VotingRound {
	var finalized []*VotingRound
	var remainingOrder []epoch.VotingEpoch

	for _, k := range m.order {
		r, ok := m.rounds[k]
		if !ok {
			continue
		}

		if k.Id <= m.Finalized {
			delete(m.rounds, k)
			continue
		}

		if k.Next().EndS() < blockTimestamp {
			if k.Id > m.Finalized {
				m.Finalized = k.Id
			}
			delete(m.rounds, k)
			finalized = append(finalized, r)
			continue
		}

		remainingOrder = append(remainingOrder, k)
	}

	m.order = remainingOrder
	return finalized
}
