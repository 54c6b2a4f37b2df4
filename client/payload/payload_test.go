package payload

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func envelopeBlock(protocolID uint8, votingRoundID uint32, body []byte) []byte {
	out := make([]byte, 0, 1+4+2+len(body))
	out = append(out, protocolID)
	var rid [4]byte
	binary.BigEndian.PutUint32(rid[:], votingRoundID)
	out = append(out, rid[:]...)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(body)))
	out = append(out, length[:]...)
	out = append(out, body...)
	return out
}

func TestParseSubmit1_FtsoAndFdc(t *testing.T) {
	commitHash := make([]byte, 32)
	commitHash[0] = 0xCC

	input := append(
		envelopeBlock(ProtocolFTSO, 42, commitHash),
		envelopeBlock(ProtocolFDC, 42, nil)...,
	)

	out, err := ParseSubmit1(input)
	require.NoError(t, err)
	require.NotNil(t, out.Ftso)
	require.Equal(t, uint32(42), out.Ftso.VotingRoundId)
	require.Equal(t, commitHash, out.Ftso.CommitHash)

	require.NotNil(t, out.Fdc)
	require.Equal(t, uint32(42), out.Fdc.VotingRoundId)
}

func TestParseSubmit2_FtsoValuesWithNoneSentinel(t *testing.T) {
	round := make([]byte, 32)
	round[31] = 7

	var none [4]byte
	sentinel := noneSentinel
	binary.BigEndian.PutUint32(none[:], uint32(sentinel))
	var present [4]byte
	binary.BigEndian.PutUint32(present[:], 123)

	body := append(round, append(present[:], none[:]...)...)
	input := envelopeBlock(ProtocolFTSO, 9, body)

	out, err := ParseSubmit2(input)
	require.NoError(t, err)
	require.NotNil(t, out.Ftso)
	require.Len(t, out.Ftso.Values, 2)
	require.Equal(t, big.NewInt(123), out.Ftso.Values[0])
	require.Nil(t, out.Ftso.Values[1])
}

func TestParseSubmit2_FdcBitvector(t *testing.T) {
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], 10)
	body := append(count[:], 0x02, 0x11)
	input := envelopeBlock(ProtocolFDC, 9, body)

	out, err := ParseSubmit2(input)
	require.NoError(t, err)
	require.NotNil(t, out.Fdc)
	require.Equal(t, uint16(10), out.Fdc.NumberOfRequests)
	require.Equal(t, []bool{true, false, false, false, false, true, false, false, false, true}, out.Fdc.BitVector)
}

func TestParseSubmitSignatures_FtsoAndFdc(t *testing.T) {
	body := func(additional []byte) []byte {
		b := make([]byte, 0, 1+38+1+32+32+len(additional))
		b = append(b, 0x01)             // type
		b = append(b, make([]byte, 38)...) // message
		b = append(b, 0x1b)              // v
		r := make([]byte, 32)
		r[0] = 0xAA
		s := make([]byte, 32)
		s[0] = 0xBB
		b = append(b, r...)
		b = append(b, s...)
		b = append(b, additional...)
		return b
	}

	input := append(
		envelopeBlock(ProtocolFTSO, 3, body(nil)),
		envelopeBlock(ProtocolFDC, 3, body([]byte("msg")))...,
	)

	out, err := ParseSubmitSignatures(input)
	require.NoError(t, err)

	require.NotNil(t, out.Ftso)
	require.Equal(t, uint32(3), out.Ftso.VotingRoundId)
	require.Equal(t, ProtocolFTSO, out.Ftso.ProtocolId)
	require.Equal(t, "0x1b", out.Ftso.Signature.V)
	require.Empty(t, out.Ftso.UnsignedMessage)

	require.NotNil(t, out.Fdc)
	require.Equal(t, []byte("msg"), out.Fdc.UnsignedMessage)
}

func TestInflateBitvote_MatchesReversedByteLayout(t *testing.T) {
	bits, err := InflateBitvote(10, []byte{0x02, 0x11})
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false, false, false, true, false, false, false, true}, bits)
}

func TestInflateBitvote_RejectsOutOfRangeSetBit(t *testing.T) {
	_, err := InflateBitvote(3, []byte{0x01, 0x00})
	require.Error(t, err)
}

func TestCommitHash_DeterministicAndSensitiveToInputs(t *testing.T) {
	addr1 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	addr2 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	round := big.NewInt(99)
	feedV := []byte{1, 2, 3}

	h1 := CommitHash(addr1, 5, round, feedV)
	h2 := CommitHash(addr1, 5, round, feedV)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 32)

	h3 := CommitHash(addr2, 5, round, feedV)
	require.NotEqual(t, h1, h3)

	h4 := CommitHash(addr1, 6, round, feedV)
	require.NotEqual(t, h1, h4)
}

func TestExtractFtsoReveal(t *testing.T) {
	round := make([]byte, 32)
	round[31] = 3
	feedV := []byte{9, 9, 9}
	input := envelopeBlock(ProtocolFTSO, 1, append(round, feedV...))

	reveal, ok, err := ExtractFtsoReveal(input)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big.NewInt(3), reveal.Round)
	require.Equal(t, feedV, reveal.FeedV)
}

func TestExtractFtsoReveal_AbsentWhenNoFtsoBlock(t *testing.T) {
	input := envelopeBlock(ProtocolFDC, 1, nil)
	_, ok, err := ExtractFtsoReveal(input)
	require.NoError(t, err)
	require.False(t, ok)
}
