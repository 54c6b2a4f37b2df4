// Package bootstrap locates the historical block range that covers one
// reward epoch's voter-registration window, and folds the signing-policy
// events found there into a SigningPolicy.
package bootstrap

import (
	"context"

	"flare-observer/chain"
	"flare-observer/chain/contracts/calculator"
	"flare-observer/chain/contracts/relay"
	"flare-observer/chain/contracts/systemsmanager"
	"flare-observer/chain/contracts/voterregistry"
	"flare-observer/epoch"
	"flare-observer/signingpolicy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// toleranceS is the ±600s convergence tolerance allowed when locating a
// block by timestamp: wide because the Relay only needs to emit
// SigningPolicyInitialized somewhere inside the scanned window for
// GetSigningPolicyEvents to terminate.
const toleranceS = 600

// stepBlocks is the per-iteration correction step once the initial guess
// (built from a 1-second average block time assumption) misses by more
// than toleranceS.
const stepBlocks = 100

// Addresses is the set of contract addresses the signing-policy event
// scan filters logs against.
type Addresses struct {
	VoterRegistry  common.Address
	Calculator     common.Address
	Relay          common.Address
	SystemsManager common.Address
}

func sign(d int64) int64 {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// findBlockForTimestamp converges on the block number whose timestamp is
// within toleranceS of target, starting from a 1s-average-block-time
// guess and stepping stepBlocks at a time.
func findBlockForTimestamp(ctx context.Context, client chain.Client, headNumber uint64, now, target int64) (uint64, error) {
	guess := int64(headNumber) - (now - target)
	if guess < 0 {
		guess = 0
	}

	for {
		blk, err := client.BlockByNumber(ctx, uint64(guess), false)
		if err != nil {
			return 0, errors.Wrap(err, "fetch block while converging on timestamp")
		}

		d := int64(blk.Timestamp) - target
		if d < 0 {
			d = -d
		}
		if d <= toleranceS {
			return uint64(guess), nil
		}

		rawD := int64(blk.Timestamp) - target
		guess -= stepBlocks * sign(rawD)
		if guess < 0 {
			guess = 0
		}
	}
}

// FindVoterRegistrationBlocks locates the block range approximating
// [reward_epoch.start_s - 9000, reward_epoch.start_s - 3600].
func FindVoterRegistrationBlocks(ctx context.Context, client chain.Client, headNumber uint64, now int64, rewardEpoch epoch.RewardEpoch) (startBlock, endBlock uint64, err error) {
	targetStart := rewardEpoch.StartS() - 9000
	targetEnd := rewardEpoch.StartS() - 3600

	startBlock, err = findBlockForTimestamp(ctx, client, headNumber, now, targetStart)
	if err != nil {
		return 0, 0, errors.Wrap(err, "converge on window start")
	}
	endBlock, err = findBlockForTimestamp(ctx, client, headNumber, now, targetEnd)
	if err != nil {
		return 0, 0, errors.Wrap(err, "converge on window end")
	}
	return startBlock, endBlock, nil
}

func eventSignatures() map[common.Hash]string {
	m := make(map[common.Hash]string)
	for k, v := range voterregistry.EventSignatures() {
		m[k] = v
	}
	for k, v := range calculator.EventSignatures() {
		m[k] = v
	}
	for k, v := range relay.EventSignatures() {
		m[k] = v
	}
	for k, v := range systemsmanager.EventSignatures() {
		m[k] = v
	}
	return m
}

// GetSigningPolicyEvents scans [startBlock, endBlock] for the six
// signing-policy events across the four contracts in addrs, folding them
// into a Builder bound to rewardEpoch and stopping once
// SigningPolicyInitialized is seen, then builds the resulting
// SigningPolicy.
func GetSigningPolicyEvents(ctx context.Context, client chain.Client, addrs Addresses, startBlock, endBlock uint64, rewardEpoch epoch.RewardEpoch) (*signingpolicy.SigningPolicy, error) {
	logs, err := client.FilterLogs(ctx, []common.Address{
		addrs.VoterRegistry, addrs.Calculator, addrs.Relay, addrs.SystemsManager,
	}, startBlock, endBlock)
	if err != nil {
		return nil, errors.Wrap(err, "filter signing policy logs")
	}

	sigs := eventSignatures()
	builder := signingpolicy.NewBuilder().ForEpoch(rewardEpoch)

	for _, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}
		name, ok := sigs[log.Topics[0]]
		if !ok {
			continue
		}

		if err := foldEvent(builder, name, log); err != nil {
			return nil, errors.Wrap(err, "fold signing policy event")
		}
		if name == "SigningPolicyInitialized" {
			break
		}
	}

	return builder.Build()
}

func foldEvent(builder *signingpolicy.Builder, name string, log types.Log) error {
	switch name {
	case "RandomAcquisitionStarted":
		e, err := systemsmanager.ParseRandomAcquisitionStarted(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	case "VotePowerBlockSelected":
		e, err := systemsmanager.ParseVotePowerBlockSelected(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	case "VoterRegistered":
		e, err := voterregistry.ParseVoterRegistered(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	case "VoterRegistrationInfo":
		e, err := calculator.ParseVoterRegistrationInfo(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	case "VoterRemoved":
		e, err := voterregistry.ParseVoterRemoved(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	case "SigningPolicyInitialized":
		e, err := relay.ParseSigningPolicyInitialized(log)
		if err != nil {
			return err
		}
		return builder.Add(e)
	default:
		return nil
	}
}
