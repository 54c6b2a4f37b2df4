// Package validate implements the FTSO and FDC validators: pure
// functions from one finalized VotingRound plus the monitored Entity to
// a list of graded issues.
package validate

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"flare-observer/client/payload"
	"flare-observer/client/notify"
	"flare-observer/entity"
	"flare-observer/votinground"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrBitvoteLengthInvalid reports that the number of sorted attestation
// requests does not equal the derived consensus bitvote's declared
// request count.
var ErrBitvoteLengthInvalid = errors.New("validate: sorted request count does not match consensus bitvote length")

// sigGraceExtraS is the "+56" grace offset: a 55-second submit-signatures
// deadline plus one second for the window's exclusive end.
const sigGraceExtraS int64 = 56

// normalizeV maps a signature's v-component (27/28, or an EIP-155
// chain-id-encoded value) to the standard 0/1 recovery-id form.
func normalizeV(v uint64) byte {
	switch {
	case v == 27 || v == 28:
		return byte(v - 27)
	case v >= 35:
		return byte((v - 35) % 2)
	default:
		return byte(v % 2)
	}
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// submissionBody strips the 4-byte function selector WTxData.Input carries
// (it holds the full tx calldata, mirroring the real transaction's input
// field) so a re-parse lands on the same selector-stripped body the
// ingestion loop itself decoded.
func submissionBody(input []byte) []byte {
	if len(input) < 4 {
		return nil
	}
	return input[4:]
}

// recoverSigningAddress recovers the address that produced sig over
// msgHash, normalizing v first. msgHash must be exactly 32 bytes.
func recoverSigningAddress(sig votinground.Signature, msgHash []byte) (common.Address, error) {
	r, err := decodeHex(sig.R)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode r")
	}
	s, err := decodeHex(sig.S)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode s")
	}
	vBytes, err := decodeHex(sig.V)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode v")
	}
	if len(r) != 32 || len(s) != 32 || len(vBytes) == 0 {
		return common.Address{}, errors.New("malformed signature component length")
	}
	v := new(big.Int).SetBytes(vBytes).Uint64()

	raw := make([]byte, 0, 65)
	raw = append(raw, r...)
	raw = append(raw, s...)
	raw = append(raw, normalizeV(v))

	pub, err := crypto.SigToPub(msgHash, raw)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recover public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ValidateFTSO audits one FTSO round for a single monitored entity,
// returning every issue the window-based checks produce. An error return
// means a re-parse or signature-recovery step failed outright (not a
// per-tx decode tolerance case) and the issues collected so far should be
// treated as incomplete.
func ValidateFTSO(round *votinground.VotingRound, e *entity.Entity, chainID int64) ([]notify.Message, error) {
	mb := notify.NewMessageBuilder().WithChainID(chainID).WithRound(round.VotingEpoch).WithProtocol(payload.ProtocolFTSO)

	ep := round.VotingEpoch
	next := ep.Next()
	ftso := round.Ftso
	finalization := ftso.Finalization

	submit1, hasSubmit1 := ftso.Submit1.Get(e.IdentityAddress).ExtractLatest(ep.StartS(), ep.EndS())
	submit2, hasSubmit2 := ftso.Submit2.Get(e.IdentityAddress).ExtractLatest(next.StartS(), next.RevealDeadline())

	finalizationTs := int64(0)
	if finalization != nil {
		finalizationTs = int64(finalization.Timestamp) + 1
	}
	sigGrace := next.StartS() + sigGraceExtraS
	if finalizationTs > sigGrace {
		sigGrace = finalizationTs
	}
	submitSig, hasSubmitSig := ftso.SubmitSignatures.Get(e.IdentityAddress).ExtractLatest(next.RevealDeadline(), sigGrace)

	var issues []notify.Message

	if !hasSubmit1 {
		issues = append(issues, mb.Build(notify.LevelInfo, "no submit1 transaction"))
	}

	if hasSubmit1 && !hasSubmit2 {
		issues = append(issues, mb.Build(notify.LevelCritical, "no submit2 transaction, causing reveal offence"))
	}

	if hasSubmit2 {
		var none []string
		for i, v := range submit2.Payload.Values {
			if v == nil {
				none = append(none, strconv.Itoa(i))
			}
		}
		if len(none) > 0 {
			issues = append(issues, mb.Build(notify.LevelWarning, fmt.Sprintf("submit 2 had 'None' on indices %s", strings.Join(none, ", "))))
		}
	}

	if hasSubmit1 && hasSubmit2 {
		reveal, ok, err := payload.ExtractFtsoReveal(submissionBody(submit2.Tx.Input))
		if err != nil {
			return issues, errors.Wrap(err, "re-parse submit2 calldata for commit hash check")
		}
		if ok {
			hashed := payload.CommitHash(e.SubmitAddress, ep.Id, reveal.Round, reveal.FeedV)
			if !bytesEqualHex(submit1.Payload.CommitHash, hashed) {
				issues = append(issues, mb.Build(notify.LevelCritical, "commit hash and reveal didn't match, causing reveal offence"))
			}
		}
	}

	if !hasSubmitSig {
		issues = append(issues, mb.Build(notify.LevelError, "no submit signatures transaction"))
	}

	if finalization != nil && hasSubmitSig {
		addr, err := recoverSigningAddress(submitSig.Payload.Signature, finalization.ToMessage())
		if err != nil {
			return issues, errors.Wrap(err, "recover submit signatures signer")
		}
		if addr != e.SigningPolicyAddress {
			issues = append(issues, mb.Build(notify.LevelError, "submit signatures signature doesn't match finalization"))
		}
	}

	return issues, nil
}

// requestTypeAndSource splits an attestation request's opaque data the way
// the FDC request encoding lays it out: a 32-byte attestation type
// followed by a 32-byte source id, both rendered as their trimmed hex
// representation for message text.
func requestTypeAndSource(data []byte) (attestationType, sourceID string) {
	if len(data) < 64 {
		return hex.EncodeToString(data), ""
	}
	return trimmedHex(data[0:32]), trimmedHex(data[32:64])
}

func trimmedHex(b []byte) string {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return "0x" + hex.EncodeToString(b[i:])
}

func bytesEqualHex(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValidateFDC audits one FDC round for a single monitored entity.
func ValidateFDC(round *votinground.VotingRound, e *entity.Entity, chainID int64) ([]notify.Message, error) {
	mb := notify.NewMessageBuilder().WithChainID(chainID).WithRound(round.VotingEpoch).WithProtocol(payload.ProtocolFDC)

	ep := round.VotingEpoch
	next := ep.Next()
	fdc := round.Fdc
	finalization := fdc.Finalization

	// submit1 absence is expected in FDC and produces no issue, so its
	// presence is not even checked here.
	submit2, hasSubmit2 := fdc.Submit2.Get(e.IdentityAddress).ExtractLatest(next.StartS(), next.RevealDeadline())

	finalizationTs := int64(0)
	if finalization != nil {
		finalizationTs = int64(finalization.Timestamp) + 1
	}
	sigGrace := next.StartS() + sigGraceExtraS
	if finalizationTs > sigGrace {
		sigGrace = finalizationTs
	}
	submitSig, hasSubmitSig := fdc.SubmitSignatures.Get(e.IdentityAddress).ExtractLatest(next.RevealDeadline(), sigGrace)
	submitSigDeadline, hasSubmitSigDeadline := fdc.SubmitSignatures.Get(e.IdentityAddress).ExtractLatest(next.RevealDeadline(), next.EndS())

	var issues []notify.Message
	expectedSignatures := true

	if !hasSubmit2 {
		issues = append(issues, mb.Build(notify.LevelError, "no submit2 transaction"))
	}

	sortedRequests := fdc.Requests.Sorted()

	if hasSubmit2 {
		if int(submit2.Payload.NumberOfRequests) != len(sortedRequests) {
			issues = append(issues, mb.Build(notify.LevelError, "submit 2 length didn't match number of requests in round"))
			expectedSignatures = false
		} else {
			consensus, err := consensusBitvote(fdc.ConsensusBitvote, len(sortedRequests))
			if err != nil {
				return issues, err
			}
			n := len(sortedRequests)
			for i := 0; i < n; i++ {
				if consensus[i] && !submit2.Payload.BitVector[i] {
					idx := n - 1 - i
					at, si := requestTypeAndSource(sortedRequests[i].Data)
					issues = append(issues, mb.Build(notify.LevelError, fmt.Sprintf(
						"submit2 didn't confirm request that was part of consensus %s/%s at index %d",
						at, si, idx,
					)))
					expectedSignatures = false
				}
			}
		}
	}

	switch {
	case hasSubmit2 && expectedSignatures && !hasSubmitSigDeadline:
		issues = append(issues, mb.Build(notify.LevelCritical, "no submit signatures transaction, causing reveal offence"))
	case hasSubmit2 && hasSubmitSigDeadline && !hasSubmitSig:
		issues = append(issues, mb.Build(notify.LevelError, "no submit signatures transaction during grace period, causing loss of rewards"))
	case !hasSubmit2 && !hasSubmitSig:
		issues = append(issues, mb.Build(notify.LevelError, "no submit signatures transaction"))
	}

	if finalization != nil && hasSubmitSig {
		addr, err := recoverSigningAddress(submitSig.Payload.Signature, finalization.ToMessage())
		if err != nil {
			return issues, errors.Wrap(err, "recover submit signatures signer")
		}
		if addr != e.SigningPolicyAddress {
			issues = append(issues, mb.Build(notify.LevelError, "submit signatures signature doesn't match finalization"))
		}
	}

	return issues, nil
}

// consensusBitvote picks the most-frequently-seen submitSignatures
// unsigned-message key and inflates it into a per-request boolean array,
// asserting its declared request count matches nRequests.
func consensusBitvote(tally map[string]int, nRequests int) ([]bool, error) {
	var winner string
	best := -1
	var keys []string
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if tally[k] > best {
			best = tally[k]
			winner = k
		}
	}

	if best < 0 {
		return make([]bool, nRequests), nil
	}

	bp := payload.NewByteParser([]byte(winner))
	n, err := bp.Uint16()
	if err != nil {
		return nil, errors.Wrap(err, "consensus bitvote header")
	}
	bits, err := payload.InflateBitvote(n, bp.Drain())
	if err != nil {
		return nil, errors.Wrap(ErrBitvoteLengthInvalid, err.Error())
	}
	if int(n) != nRequests {
		return nil, ErrBitvoteLengthInvalid
	}
	return bits, nil
}
