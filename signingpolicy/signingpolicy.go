// Package signingpolicy reconstructs and represents the per-reward-epoch
// SigningPolicy (C3): an immutable snapshot of registered entities, folded
// from a strict sequence of contract events.
package signingpolicy

import (
	"fmt"
	"math/big"

	"flare-observer/entity"
	"flare-observer/epoch"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// SigningPolicy is the immutable roster and threshold for one reward
// epoch, replaced atomically on rollover by the ingestion loop (C6).
type SigningPolicy struct {
	RewardEpoch epoch.RewardEpoch

	VotePowerBlock   uint64
	StartVotingRound uint32

	Threshold uint16
	Seed      *big.Int

	// SigningPolicyBytes is the raw encoded policy as emitted on-chain.
	SigningPolicyBytes []byte

	Entities     []*entity.Entity
	EntityMapper *entity.EntityMapper
}

// Builder folds the six signing-policy event kinds in the order they
// arrive on-chain, producing a SigningPolicy on Build.
//
// Singleton slots (RandomAcquisitionStarted, VotePowerBlockSelected,
// SigningPolicyInitialized) are set-once; registration events accumulate.
type Builder struct {
	rewardEpoch *epoch.RewardEpoch

	randomAcquisitionStarted *RandomAcquisitionStarted
	votePowerBlockSelected   *VotePowerBlockSelected
	signingPolicyInitialized *SigningPolicyInitialized

	voterRegistered       []VoterRegistered
	voterRegistrationInfo []VoterRegistrationInfo
	voterRemoved          []VoterRemoved
}

func NewBuilder() *Builder {
	return &Builder{}
}

// ForEpoch binds the reward epoch the resulting policy belongs to. Safe to
// call before the epoch is known and set later, mirroring the original
// observer's builder, which is sometimes constructed reward-epoch-less
// until the first RandomAcquisitionStarted for the next reward epoch is
// seen.
func (b *Builder) ForEpoch(r epoch.RewardEpoch) *Builder {
	b.rewardEpoch = &r
	return b
}

// SigningPolicyInitialized reports the terminal event if one has been
// folded, so callers (the ingestion loop) can detect rollover readiness
// without reaching into builder internals.
func (b *Builder) SigningPolicyInitialized() *SigningPolicyInitialized {
	return b.signingPolicyInitialized
}

// Add folds one event into the builder. Violating the set-once contract
// on a singleton slot returns an invariant-violation error rather than
// panicking, so a malformed event stream from a misbehaving RPC node
// degrades to a terminated ingestion loop instead of a process crash
// mid-fold.
func (b *Builder) Add(event any) error {
	switch e := event.(type) {
	case RandomAcquisitionStarted:
		if b.randomAcquisitionStarted != nil {
			return errBuilderInvariant("RandomAcquisitionStarted already set for this builder")
		}
		b.randomAcquisitionStarted = &e
	case VotePowerBlockSelected:
		if b.votePowerBlockSelected != nil {
			return errBuilderInvariant("VotePowerBlockSelected already set for this builder")
		}
		b.votePowerBlockSelected = &e
	case VoterRegistered:
		b.voterRegistered = append(b.voterRegistered, e)
	case VoterRegistrationInfo:
		b.voterRegistrationInfo = append(b.voterRegistrationInfo, e)
	case VoterRemoved:
		b.voterRemoved = append(b.voterRemoved, e)
	case SigningPolicyInitialized:
		if b.signingPolicyInitialized != nil {
			return errBuilderInvariant("SigningPolicyInitialized already set for this builder")
		}
		b.signingPolicyInitialized = &e
	default:
		return errBuilderInvariant(fmt.Sprintf("unknown signing-policy event type %T", event))
	}
	return nil
}

// InvariantViolationError reports a fatal assertion failure while
// building a SigningPolicy.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "signing policy invariant violation: " + e.Reason
}

func errBuilderInvariant(reason string) error {
	return &InvariantViolationError{Reason: reason}
}

// Build validates the folded events and constructs the SigningPolicy.
// Fails fast with an *InvariantViolationError on any missing singleton or
// registration inconsistency; an address shared between roles or
// entities returns the *entity.DuplicateAddressError, wrapped.
func (b *Builder) Build() (*SigningPolicy, error) {
	if b.rewardEpoch == nil {
		return nil, errBuilderInvariant("no reward epoch bound to builder")
	}
	rid := b.rewardEpoch.Id

	if b.randomAcquisitionStarted == nil {
		return nil, errBuilderInvariant("missing RandomAcquisitionStarted")
	}
	if b.randomAcquisitionStarted.RewardEpochId != rid {
		return nil, errBuilderInvariant("RandomAcquisitionStarted reward epoch mismatch")
	}

	if b.votePowerBlockSelected == nil {
		return nil, errBuilderInvariant("missing VotePowerBlockSelected")
	}
	if b.votePowerBlockSelected.RewardEpochId != rid {
		return nil, errBuilderInvariant("VotePowerBlockSelected reward epoch mismatch")
	}

	if b.signingPolicyInitialized == nil {
		return nil, errBuilderInvariant("missing SigningPolicyInitialized")
	}
	if b.signingPolicyInitialized.RewardEpochId != rid {
		return nil, errBuilderInvariant("SigningPolicyInitialized reward epoch mismatch")
	}

	if len(b.voterRegistered) != len(b.voterRegistrationInfo) {
		return nil, errBuilderInvariant("voter registered / registration info count mismatch")
	}

	bySigningPolicyAddr := make(map[common.Address]VoterRegistered, len(b.voterRegistered))
	byVoter := make(map[common.Address]VoterRegistered, len(b.voterRegistered))
	for _, v := range b.voterRegistered {
		bySigningPolicyAddr[v.SigningPolicyAddress] = v
		byVoter[v.Voter] = v
	}
	infoByVoter := make(map[common.Address]VoterRegistrationInfo, len(b.voterRegistrationInfo))
	for _, v := range b.voterRegistrationInfo {
		infoByVoter[v.Voter] = v
	}

	entities := make([]*entity.Entity, 0, len(b.signingPolicyInitialized.Voters))
	mapper := entity.NewEntityMapper()

	for i, spVoter := range b.signingPolicyInitialized.Voters {
		weight := b.signingPolicyInitialized.Weights[i]

		vre, ok := bySigningPolicyAddr[spVoter]
		if !ok {
			return nil, errBuilderInvariant(fmt.Sprintf("no VoterRegistered for signing policy voter %s", spVoter.Hex()))
		}
		vrie, ok := infoByVoter[vre.Voter]
		if !ok {
			return nil, errBuilderInvariant(fmt.Sprintf("no VoterRegistrationInfo for voter %s", vre.Voter.Hex()))
		}

		if len(vrie.NodeIDs) != len(vrie.NodeWeights) {
			return nil, errBuilderInvariant(fmt.Sprintf("node id/weight count mismatch for voter %s", vre.Voter.Hex()))
		}
		nodes := make([]entity.Node, len(vrie.NodeIDs))
		for j := range vrie.NodeIDs {
			nodes[j] = entity.Node{NodeID: vrie.NodeIDs[j], Weight: vrie.NodeWeights[j]}
		}

		e := &entity.Entity{
			IdentityAddress:          vre.Voter,
			SubmitAddress:            vre.SubmitAddress,
			SubmitSignaturesAddress:  vre.SubmitSignaturesAddress,
			SigningPolicyAddress:     vre.SigningPolicyAddress,
			DelegationAddress:        vrie.DelegationAddress,
			PublicKey:                vre.PublicKey,
			Nodes:                    nodes,
			DelegationFeeBIPS:        vrie.DelegationFeeBIPS,
			WNatWeight:               vrie.WNatWeight,
			WNatCappedWeight:         vrie.WNatCappedWeight,
			RegistrationWeight:       vre.RegistrationWeight,
			NormalizedWeight:         weight,
		}

		if err := mapper.Insert(e); err != nil {
			return nil, errors.Wrap(err, "signing policy entity insert")
		}
		entities = append(entities, e)
	}

	return &SigningPolicy{
		RewardEpoch:         *b.rewardEpoch,
		VotePowerBlock:      b.votePowerBlockSelected.VotePowerBlock,
		StartVotingRound:    b.signingPolicyInitialized.StartVotingRoundId,
		Threshold:           b.signingPolicyInitialized.Threshold,
		Seed:                b.signingPolicyInitialized.Seed,
		SigningPolicyBytes:  b.signingPolicyInitialized.SigningPolicyBytes,
		Entities:            entities,
		EntityMapper:         mapper,
	}, nil
}
