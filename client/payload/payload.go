// Package payload decodes the raw calldata submitted to the Submission
// contract's submit1/submit2/submitSignatures functions into the typed
// payloads votinground accumulates.
//
// The wire format follows the SignatureSubmitter.WritePayload framing
// used for submitSignatures, generalized to submit1/submit2, which share
// the same outer per-protocol block:
//
//	protocolId     1 byte
//	votingRoundId  4 bytes, big-endian
//	length         2 bytes, big-endian -- length of the inner payload
//	payload        length bytes, kind- and protocol-specific
//
// repeated for as many sub-protocols as the submission covers.
package payload

import (
	"math/big"

	"flare-observer/votinground"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	ProtocolFTSO uint8 = 100
	ProtocolFDC  uint8 = 200
)

// noneSentinel is the FTSO feed-value encoding for "not revealed".
const noneSentinel = int32(-1 << 31)

// block is one decoded outer envelope entry before its inner payload is
// interpreted by a kind-specific parser.
type block struct {
	protocolID    uint8
	votingRoundID uint32
	data          []byte
}

func splitEnvelope(input []byte) ([]block, error) {
	p := NewByteParser(input)
	var blocks []block
	for p.Remaining() > 0 {
		protocolID, err := p.Uint8()
		if err != nil {
			return nil, errors.Wrap(err, "read protocol id")
		}
		votingRoundID, err := p.Uint32()
		if err != nil {
			return nil, errors.Wrap(err, "read voting round id")
		}
		length, err := p.Uint16()
		if err != nil {
			return nil, errors.Wrap(err, "read length")
		}
		data, err := p.Bytes(int(length))
		if err != nil {
			return nil, errors.Wrap(err, "read payload")
		}
		blocks = append(blocks, block{protocolID: protocolID, votingRoundID: votingRoundID, data: data})
	}
	return blocks, nil
}

// Submit1Result holds the optional per-protocol submit1 payloads decoded
// from one transaction.
type Submit1Result struct {
	Ftso *votinground.FtsoSubmit1
	Fdc  *votinground.FdcSubmit1
}

func ParseSubmit1(input []byte) (Submit1Result, error) {
	var out Submit1Result
	blocks, err := splitEnvelope(input)
	if err != nil {
		return out, err
	}
	for _, b := range blocks {
		switch b.protocolID {
		case ProtocolFTSO:
			commitHash, err := NewByteParser(b.data).Bytes(32)
			if err != nil {
				return out, errors.Wrap(err, "ftso submit1 commit hash")
			}
			out.Ftso = &votinground.FtsoSubmit1{VotingRoundId: b.votingRoundID, CommitHash: commitHash}
		case ProtocolFDC:
			out.Fdc = &votinground.FdcSubmit1{VotingRoundId: b.votingRoundID}
		}
	}
	return out, nil
}

// Submit2Result holds the optional per-protocol submit2 (reveal) payloads.
type Submit2Result struct {
	Ftso *votinground.FtsoSubmit2
	Fdc  *votinground.FdcSubmit2
}

func ParseSubmit2(input []byte) (Submit2Result, error) {
	var out Submit2Result
	blocks, err := splitEnvelope(input)
	if err != nil {
		return out, err
	}
	for _, b := range blocks {
		switch b.protocolID {
		case ProtocolFTSO:
			bp := NewByteParser(b.data)
			if _, err := bp.Uint256(); err != nil {
				return out, errors.Wrap(err, "ftso submit2 round")
			}
			values, err := decodeFeedValues(bp.Drain())
			if err != nil {
				return out, errors.Wrap(err, "ftso submit2 values")
			}
			out.Ftso = &votinground.FtsoSubmit2{VotingRoundId: b.votingRoundID, Values: values}
		case ProtocolFDC:
			bp := NewByteParser(b.data)
			n, err := bp.Uint16()
			if err != nil {
				return out, errors.Wrap(err, "fdc submit2 count")
			}
			packed := bp.Drain()
			bits, err := InflateBitvote(n, packed)
			if err != nil {
				return out, errors.Wrap(err, "fdc submit2 bitvector")
			}
			out.Fdc = &votinground.FdcSubmit2{VotingRoundId: b.votingRoundID, NumberOfRequests: n, BitVector: bits}
		}
	}
	return out, nil
}

func decodeFeedValues(raw []byte) ([]*big.Int, error) {
	bp := NewByteParser(raw)
	var values []*big.Int
	for bp.Remaining() > 0 {
		v, err := bp.Int32()
		if err != nil {
			return nil, err
		}
		if v == noneSentinel {
			values = append(values, nil)
			continue
		}
		values = append(values, big.NewInt(int64(v)))
	}
	return values, nil
}

// SubmitSignaturesResult holds the optional per-protocol submitSignatures
// payloads.
type SubmitSignaturesResult struct {
	Ftso *votinground.SubmitSignatures
	Fdc  *votinground.SubmitSignatures
}

func ParseSubmitSignatures(input []byte) (SubmitSignaturesResult, error) {
	var out SubmitSignaturesResult
	blocks, err := splitEnvelope(input)
	if err != nil {
		return out, err
	}
	for _, b := range blocks {
		bp := NewByteParser(b.data)
		if _, err := bp.Uint8(); err != nil { // type, unused
			return out, errors.Wrap(err, "submit signatures type")
		}
		if _, err := bp.Bytes(38); err != nil { // message, unused for recovery
			return out, errors.Wrap(err, "submit signatures message")
		}
		v, err := bp.Bytes(1)
		if err != nil {
			return out, errors.Wrap(err, "submit signatures v")
		}
		r, err := bp.Bytes(32)
		if err != nil {
			return out, errors.Wrap(err, "submit signatures r")
		}
		s, err := bp.Bytes(32)
		if err != nil {
			return out, errors.Wrap(err, "submit signatures s")
		}
		additional := bp.Drain()

		sig := votinground.Signature{
			V: hexEncode(v),
			R: hexEncode(r),
			S: hexEncode(s),
		}
		ss := &votinground.SubmitSignatures{
			VotingRoundId: b.votingRoundID,
			ProtocolId:    b.protocolID,
			Signature:     sig,
		}

		switch b.protocolID {
		case ProtocolFTSO:
			out.Ftso = ss
		case ProtocolFDC:
			ss.UnsignedMessage = additional
			out.Fdc = ss
		}
	}
	return out, nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hexDigits[c>>4]
		out[3+i*2] = hexDigits[c&0x0f]
	}
	return string(out)
}

// InflateBitvote unpacks a bit vector of nRequests bits from remainder,
// the way both FDC submit2 payloads and the derived consensus bitvote are
// encoded on chain: walking remainder from its last byte to its first,
// each byte's 8 bits fill descending indices ending at nRequests-1. A set
// bit that would land below index 0 indicates a corrupt payload.
func InflateBitvote(nRequests uint16, remainder []byte) ([]bool, error) {
	n := int(nRequests)
	bits := make([]bool, n)
	for j := 0; j < len(remainder); j++ {
		b := remainder[len(remainder)-1-j]
		for shift := 0; shift < 8; shift++ {
			i := n - 1 - j*8 - shift
			set := b&(1<<uint(shift)) != 0
			if i < 0 {
				if set {
					return nil, errors.Errorf("bitvote: invalid payload length for %d requests", nRequests)
				}
				continue
			}
			bits[i] = set
		}
	}
	return bits, nil
}

// FtsoRevealPayload is the re-parsed submit2 content used solely to
// reconstruct the committed hash; validate_ftso re-derives this directly
// from calldata rather than from the already-decoded FtsoSubmit2, since
// the commit hash covers the raw reveal bytes, not the parser's decoded
// integers.
type FtsoRevealPayload struct {
	Round *big.Int
	FeedV []byte
}

// CommitHash reproduces the FTSO commit-reveal binding: keccak256 of the
// submitting address, the voting epoch id the commit belongs to, the
// reveal round nonce, and the raw reveal bytes.
func CommitHash(submitAddress common.Address, epochID int64, round *big.Int, feedV []byte) []byte {
	buf := make([]byte, 0, 20+4+32+len(feedV))
	buf = append(buf, submitAddress.Bytes()...)

	var epochBytes [4]byte
	e := uint32(epochID)
	epochBytes[0] = byte(e >> 24)
	epochBytes[1] = byte(e >> 16)
	epochBytes[2] = byte(e >> 8)
	epochBytes[3] = byte(e)
	buf = append(buf, epochBytes[:]...)

	var roundBytes [32]byte
	if round != nil {
		round.FillBytes(roundBytes[:])
	}
	buf = append(buf, roundBytes[:]...)
	buf = append(buf, feedV...)

	return crypto.Keccak256(buf)
}

// ExtractFtsoReveal re-parses a submit2 transaction's calldata and returns
// the raw (round, feed_v) bytes the FTSO commit hash was computed over.
func ExtractFtsoReveal(input []byte) (FtsoRevealPayload, bool, error) {
	blocks, err := splitEnvelope(input)
	if err != nil {
		return FtsoRevealPayload{}, false, err
	}
	for _, b := range blocks {
		if b.protocolID != ProtocolFTSO {
			continue
		}
		bp := NewByteParser(b.data)
		round, err := bp.Uint256()
		if err != nil {
			return FtsoRevealPayload{}, false, errors.Wrap(err, "ftso reveal round")
		}
		return FtsoRevealPayload{Round: round, FeedV: bp.Drain()}, true, nil
	}
	return FtsoRevealPayload{}, false, nil
}
