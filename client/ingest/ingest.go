// Package ingest implements the block-by-block ingestion loop: the
// single cooperative driver that reconstructs the signing policy live,
// feeds every transaction and log into the per-round accumulator state,
// finalizes rounds, and runs the validators.
package ingest

import (
	"context"
	"time"

	"flare-observer/chain"
	"flare-observer/chain/contracts/calculator"
	"flare-observer/chain/contracts/fdchub"
	"flare-observer/chain/contracts/relay"
	"flare-observer/chain/contracts/submission"
	"flare-observer/chain/contracts/systemsmanager"
	"flare-observer/chain/contracts/voterregistry"
	"flare-observer/client/bootstrap"
	"flare-observer/client/notify"
	"flare-observer/client/payload"
	"flare-observer/client/validate"
	"flare-observer/entity"
	"flare-observer/epoch"
	"flare-observer/logger"
	"flare-observer/metrics"
	"flare-observer/signingpolicy"
	"flare-observer/votinground"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// idleSleep is the pause between head checks once no new block has
// appeared.
const idleSleep = 2 * time.Second

// Addresses is every contract address the ingestion loop touches: the
// four signing-policy contracts, FdcHub for attestation requests, and
// Submission for the three watched function selectors.
type Addresses struct {
	VoterRegistry  common.Address
	Calculator     common.Address
	Relay          common.Address
	SystemsManager common.Address
	FdcHub         common.Address
	Submission     common.Address
}

func (a Addresses) logAddresses() []common.Address {
	return []common.Address{a.VoterRegistry, a.Calculator, a.Relay, a.SystemsManager, a.FdcHub}
}

func (a Addresses) bootstrapAddresses() bootstrap.Addresses {
	return bootstrap.Addresses{
		VoterRegistry:  a.VoterRegistry,
		Calculator:     a.Calculator,
		Relay:          a.Relay,
		SystemsManager: a.SystemsManager,
	}
}

// Engine holds the ingestion loop's entire state: the next unprocessed
// block, the current signing policy, the builder accumulating the next
// one, and the voting-round manager.
type Engine struct {
	client          chain.Client
	addrs           Addresses
	selectors       submission.Selectors
	identityAddress common.Address
	chainID         int64
	sink            *notify.Sender

	votingEpochs *epoch.VotingEpochFactory
	rewardEpochs *epoch.RewardEpochFactory

	blockNumber   uint64
	signingPolicy *signingpolicy.SigningPolicy
	spb           *signingpolicy.Builder
	vrm           *votinground.Manager
	history       *signingpolicy.History

	logSigs map[common.Hash]string
}

// SigningPolicyHistory exposes the retained signing-policy history for
// diagnostic lookups against an arbitrary past voting round.
func (e *Engine) SigningPolicyHistory() *signingpolicy.History {
	return e.history
}

// Config bundles the construction parameters an Engine needs.
type Config struct {
	Client          chain.Client
	Addresses       Addresses
	IdentityAddress common.Address
	ChainID         int64
	Sink            *notify.Sender
	VotingEpochs    *epoch.VotingEpochFactory
	RewardEpochs    *epoch.RewardEpochFactory
}

func New(cfg Config) *Engine {
	return &Engine{
		client:          cfg.Client,
		addrs:           cfg.Addresses,
		selectors:       submission.NewSelectors(),
		identityAddress: cfg.IdentityAddress,
		chainID:         cfg.ChainID,
		sink:            cfg.Sink,
		votingEpochs:    cfg.VotingEpochs,
		rewardEpochs:    cfg.RewardEpochs,
		vrm:             votinground.NewManager(-1),
		history:         signingpolicy.NewHistory(),
		logSigs:         combinedEventSignatures(),
	}
}

func combinedEventSignatures() map[common.Hash]string {
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
	for k, v := range fdchub.EventSignatures() {
		m[k] = v
	}
	return m
}

// Bootstrap locates the voter-registration window for the reward epoch
// containing now, folds its signing-policy events into the initial
// SigningPolicy, binds a builder for the following reward epoch, and
// starts the ingestion loop at the current chain head -- this module
// does not replay history beyond that one signing-policy window.
func (e *Engine) Bootstrap(ctx context.Context, now int64) error {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch chain head for bootstrap")
	}

	currentReward := e.rewardEpochs.FromTimestamp(now)

	startBlock, endBlock, err := bootstrap.FindVoterRegistrationBlocks(ctx, e.client, head, now, currentReward)
	if err != nil {
		return errors.Wrap(err, "find voter registration blocks")
	}

	sp, err := bootstrap.GetSigningPolicyEvents(ctx, e.client, e.addrs.bootstrapAddresses(), startBlock, endBlock, currentReward)
	if err != nil {
		return errors.Wrap(err, "get signing policy events")
	}

	e.signingPolicy = sp
	e.spb = signingpolicy.NewBuilder().ForEpoch(sp.RewardEpoch.Next())
	e.blockNumber = head
	if err := e.history.Add(sp); err != nil {
		return errors.Wrap(err, "record bootstrapped signing policy in history")
	}

	metrics.SigningPolicyRewardEpoch.Set(float64(sp.RewardEpoch.Id))
	logger.Info("bootstrapped signing policy for reward epoch %d from blocks [%d, %d]", sp.RewardEpoch.Id, startBlock, endBlock)
	return nil
}

// Run drives the cooperative loop until ctx is cancelled or processing a
// block fails: RPC failures, log decode failures and signing-policy
// builder errors end the loop. Validator errors, including
// signature-recovery and bitvote-length failures, are logged and do not
// end it.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		latest, err := e.client.BlockNumber(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch chain head")
		}

		if latest == e.blockNumber {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleSleep):
			}
			continue
		}

		for b := e.blockNumber; b < latest; b++ {
			if err := e.processBlock(ctx, b); err != nil {
				return errors.Wrapf(err, "process block %d", b)
			}
		}
		e.blockNumber = latest
	}
}

func (e *Engine) processBlock(ctx context.Context, number uint64) error {
	block, err := e.client.BlockByNumber(ctx, number, true)
	if err != nil {
		return errors.Wrap(err, "fetch block")
	}

	votingEpoch := e.votingEpochs.FromTimestamp(int64(block.Timestamp))
	metrics.CurrentVotingEpoch.Set(float64(votingEpoch.Id))

	// Policy rollover happens before this block's logs are folded, so a
	// SigningPolicyInitialized seen in this very block does not retroactively
	// change which policy governed the block that contains it.
	if terminal := e.spb.SigningPolicyInitialized(); terminal != nil && int64(terminal.StartVotingRoundId) == votingEpoch.Id {
		next, err := e.spb.Build()
		if err != nil {
			return errors.Wrap(err, "build rolled-over signing policy")
		}
		e.signingPolicy = next
		e.spb = signingpolicy.NewBuilder().ForEpoch(next.RewardEpoch.Next())
		if err := e.history.Add(next); err != nil {
			return errors.Wrap(err, "record rolled-over signing policy in history")
		}
		metrics.SigningPolicyRewardEpoch.Set(float64(next.RewardEpoch.Id))
		logger.Info("signing policy rolled over to reward epoch %d at voting epoch %d", next.RewardEpoch.Id, votingEpoch.Id)
	}

	logs, err := e.client.FilterLogs(ctx, e.addrs.logAddresses(), number, number)
	if err != nil {
		return errors.Wrap(err, "filter block logs")
	}
	for _, lg := range logs {
		if err := e.dispatchLog(lg, block); err != nil {
			return errors.Wrap(err, "dispatch log")
		}
	}

	for i, tx := range block.Transactions {
		e.dispatchTransaction(tx, block, uint(i))
	}

	finalized := e.vrm.Finalize(int64(block.Timestamp))
	if len(finalized) > 0 {
		metrics.RoundsFinalizedTotal.Add(float64(len(finalized)))
	}
	for _, round := range finalized {
		e.runValidators(ctx, round)
	}

	metrics.BlocksProcessedTotal.Inc()
	return nil
}

func (e *Engine) dispatchLog(lg types.Log, block *chain.Block) error {
	if len(lg.Topics) == 0 {
		return nil
	}
	name, ok := e.logSigs[lg.Topics[0]]
	if !ok {
		return nil
	}

	switch name {
	case "ProtocolMessageRelayed":
		ev, err := relay.ParseProtocolMessageRelayed(lg)
		if err != nil {
			return err
		}
		round := e.vrm.Get(e.votingEpochs.FromID(int64(ev.VotingRoundId)))
		switch ev.ProtocolId {
		case payload.ProtocolFTSO:
			round.Ftso.Finalization = &ev
		case payload.ProtocolFDC:
			round.Fdc.Finalization = &ev
		}
	case "AttestationRequest":
		raw, err := fdchub.ParseAttestationRequest(lg)
		if err != nil {
			return err
		}
		ar := signingpolicy.AttestationRequest{
			Data:          raw.Data,
			Timestamp:     raw.Timestamp,
			VotingEpochId: e.votingEpochs.FromTimestamp(int64(block.Timestamp)).Id,
			Block:         lg.BlockNumber,
			LogIndex:      lg.Index,
		}
		round := e.vrm.Get(e.votingEpochs.FromID(ar.VotingEpochId))
		round.Fdc.Requests.Agg = append(round.Fdc.Requests.Agg, ar)
	case "RandomAcquisitionStarted":
		ev, err := systemsmanager.ParseRandomAcquisitionStarted(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	case "VotePowerBlockSelected":
		ev, err := systemsmanager.ParseVotePowerBlockSelected(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	case "VoterRegistered":
		ev, err := voterregistry.ParseVoterRegistered(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	case "VoterRegistrationInfo":
		ev, err := calculator.ParseVoterRegistrationInfo(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	case "VoterRemoved":
		ev, err := voterregistry.ParseVoterRemoved(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	case "SigningPolicyInitialized":
		ev, err := relay.ParseSigningPolicyInitialized(lg)
		if err != nil {
			return err
		}
		return e.spb.Add(ev)
	}
	return nil
}

// dispatchTransaction inspects one transaction's calldata against the
// three watched Submission selectors. Any decode failure here is
// swallowed since the ingestion loop must never abort on a single
// malformed call.
func (e *Engine) dispatchTransaction(tx *types.Transaction, block *chain.Block, index uint) {
	to := tx.To()
	if to == nil || *to != e.addrs.Submission {
		return
	}

	sender, ok := senderAt(block, index)
	if !ok {
		return
	}
	ent, ok := e.signingPolicy.EntityMapper.ByOmni[sender]
	if !ok {
		return
	}

	data := tx.Data()
	if len(data) < 4 {
		return
	}
	selector, body := data[:4], data[4:]

	wtx := votinground.WTxData{
		Hash:             tx.Hash(),
		To:               to,
		Input:            data,
		BlockNumber:      block.Number,
		Timestamp:        int64(block.Timestamp),
		TransactionIndex: index,
		From:             sender,
		Value:            tx.Value(),
	}

	var err error
	switch {
	case matches(selector, e.selectors.Submit1):
		err = e.insertSubmit1(ent, body, wtx)
	case matches(selector, e.selectors.Submit2):
		err = e.insertSubmit2(ent, body, wtx)
	case matches(selector, e.selectors.SubmitSignatures):
		err = e.insertSubmitSignatures(ent, body, wtx)
	default:
		return
	}
	if err != nil {
		logger.Debug("submission decode failed for tx %s: %v", tx.Hash().Hex(), err)
	}
}

func senderAt(block *chain.Block, index uint) (common.Address, bool) {
	if int(index) >= len(block.Senders) {
		return common.Address{}, false
	}
	sender := block.Senders[index]
	if sender == (common.Address{}) {
		return common.Address{}, false
	}
	return sender, true
}

func matches(selector, want []byte) bool {
	if len(selector) != len(want) {
		return false
	}
	for i := range selector {
		if selector[i] != want[i] {
			return false
		}
	}
	return true
}

// logIfStaleAgainstPolicy is an informational-only diagnostic: it never
// gates a validator decision, but surfaces in logs when a submission names
// a voting round that predates the signing policy currently driving
// validation, which governing reward epoch actually covered it.
func (e *Engine) logIfStaleAgainstPolicy(votingRoundID uint32) {
	if e.signingPolicy == nil || votingRoundID >= e.signingPolicy.StartVotingRound {
		return
	}
	governing := e.history.ForVotingRound(votingRoundID)
	if governing == nil || governing.RewardEpoch.Id == e.signingPolicy.RewardEpoch.Id {
		return
	}
	logger.Debug("voting round %d predates current signing policy (reward epoch %d); actually governed by reward epoch %d",
		votingRoundID, e.signingPolicy.RewardEpoch.Id, governing.RewardEpoch.Id)
}

// insertSubmit1 parses a submit1 call body and inserts each present
// sub-payload into the voting round its own voting_round_id names, not
// necessarily the block's nominal voting epoch.
func (e *Engine) insertSubmit1(ent *entity.Entity, body []byte, wtx votinground.WTxData) error {
	parsed, err := payload.ParseSubmit1(body)
	if err != nil {
		return err
	}
	if parsed.Ftso != nil {
		e.logIfStaleAgainstPolicy(parsed.Ftso.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Ftso.VotingRoundId)))
		round.Ftso.InsertSubmit1(ent, *parsed.Ftso, wtx)
	}
	if parsed.Fdc != nil {
		e.logIfStaleAgainstPolicy(parsed.Fdc.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Fdc.VotingRoundId)))
		round.Fdc.InsertSubmit1(ent, *parsed.Fdc, wtx)
	}
	return nil
}

func (e *Engine) insertSubmit2(ent *entity.Entity, body []byte, wtx votinground.WTxData) error {
	parsed, err := payload.ParseSubmit2(body)
	if err != nil {
		return err
	}
	if parsed.Ftso != nil {
		e.logIfStaleAgainstPolicy(parsed.Ftso.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Ftso.VotingRoundId)))
		round.Ftso.InsertSubmit2(ent, *parsed.Ftso, wtx)
	}
	if parsed.Fdc != nil {
		e.logIfStaleAgainstPolicy(parsed.Fdc.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Fdc.VotingRoundId)))
		round.Fdc.InsertSubmit2(ent, *parsed.Fdc, wtx)
	}
	return nil
}

func (e *Engine) insertSubmitSignatures(ent *entity.Entity, body []byte, wtx votinground.WTxData) error {
	parsed, err := payload.ParseSubmitSignatures(body)
	if err != nil {
		return err
	}
	if parsed.Ftso != nil {
		e.logIfStaleAgainstPolicy(parsed.Ftso.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Ftso.VotingRoundId)))
		round.Ftso.InsertSubmitSignatures(ent, *parsed.Ftso, wtx)
	}
	if parsed.Fdc != nil {
		e.logIfStaleAgainstPolicy(parsed.Fdc.VotingRoundId)
		round := e.vrm.Get(e.votingEpochs.FromID(int64(parsed.Fdc.VotingRoundId)))
		round.Fdc.InsertSubmitSignatures(ent, *parsed.Fdc, wtx)
		round.Fdc.ConsensusBitvote[string(parsed.Fdc.UnsignedMessage)]++
	}
	return nil
}

func (e *Engine) runValidators(ctx context.Context, round *votinground.VotingRound) {
	ent, ok := e.signingPolicy.EntityMapper.ByIdentityAddress[e.identityAddress]
	if !ok {
		return
	}

	ftsoIssues, err := validate.ValidateFTSO(round, ent, e.chainID)
	if err != nil {
		logger.Error("ftso validation failed for voting epoch %d: %v", round.VotingEpoch.Id, err)
	}
	for _, msg := range ftsoIssues {
		e.emit(ctx, msg)
	}

	fdcIssues, err := validate.ValidateFDC(round, ent, e.chainID)
	if err != nil {
		logger.Error("fdc validation failed for voting epoch %d: %v", round.VotingEpoch.Id, err)
		return
	}
	for _, msg := range fdcIssues {
		e.emit(ctx, msg)
	}
}

func (e *Engine) emit(ctx context.Context, msg notify.Message) {
	logger.Info("%s", msg.String())
	metrics.IssuesEmittedTotal.WithLabelValues(msg.Level.String()).Inc()
	if e.sink == nil {
		return
	}
	if err := e.sink.Send(ctx, msg); err != nil {
		logger.Warn("notification dispatch failed: %v", err)
	}
}
