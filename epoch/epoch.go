// Package epoch maps wall-clock time to voting and reward epochs (C1).
package epoch

import "time"

// revealDeadlineOffsetS is the number of seconds past a voting epoch's
// start at which the reveal window for that epoch's submit2 closes. It is
// protocol-defined (the FTSO/FDC commit-reveal schedule), not derived from
// any other configured duration.
const revealDeadlineOffsetS int64 = 45

// VotingEpochFactory derives VotingEpoch values from a fixed-length
// schedule: epoch 0 starts at FirstEpochStartS, each subsequent epoch
// EpochDurationS seconds later.
type VotingEpochFactory struct {
	FirstEpochStartS int64
	EpochDurationS   int64
}

// VotingEpoch identifies one voting round's time window. Two VotingEpoch
// values with equal Id and the same factory compare equal, so it is safe
// to use as a map key (VotingRoundManager.rounds).
type VotingEpoch struct {
	Id      int64
	factory *VotingEpochFactory
}

func (f *VotingEpochFactory) FromID(id int64) VotingEpoch {
	return VotingEpoch{Id: id, factory: f}
}

// FromTimestamp returns the voting epoch containing the given unix
// timestamp (seconds).
func (f *VotingEpochFactory) FromTimestamp(ts int64) VotingEpoch {
	id := (ts - f.FirstEpochStartS) / f.EpochDurationS
	return VotingEpoch{Id: id, factory: f}
}

func (e VotingEpoch) StartS() int64 {
	return e.factory.FirstEpochStartS + e.Id*e.factory.EpochDurationS
}

func (e VotingEpoch) EndS() int64 {
	return e.StartS() + e.factory.EpochDurationS
}

// RevealDeadline returns the unix timestamp at which this epoch's reveal
// (submit2) window closes.
func (e VotingEpoch) RevealDeadline() int64 {
	return e.StartS() + revealDeadlineOffsetS
}

func (e VotingEpoch) Next() VotingEpoch {
	return VotingEpoch{Id: e.Id + 1, factory: e.factory}
}

func (e VotingEpoch) Previous() VotingEpoch {
	return VotingEpoch{Id: e.Id - 1, factory: e.factory}
}

func (e VotingEpoch) StartTime() time.Time { return time.Unix(e.StartS(), 0).UTC() }
func (e VotingEpoch) EndTime() time.Time   { return time.Unix(e.EndS(), 0).UTC() }

// RewardEpochFactory derives RewardEpoch values the same way
// VotingEpochFactory derives VotingEpoch values, on its own (much longer)
// schedule.
type RewardEpochFactory struct {
	FirstEpochStartS int64
	EpochDurationS   int64
}

// RewardEpoch identifies the reward-epoch window a SigningPolicy applies
// to.
type RewardEpoch struct {
	Id      int64
	factory *RewardEpochFactory
}

func (f *RewardEpochFactory) FromID(id int64) RewardEpoch {
	return RewardEpoch{Id: id, factory: f}
}

func (f *RewardEpochFactory) FromTimestamp(ts int64) RewardEpoch {
	id := (ts - f.FirstEpochStartS) / f.EpochDurationS
	return RewardEpoch{Id: id, factory: f}
}

func (e RewardEpoch) StartS() int64 {
	return e.factory.FirstEpochStartS + e.Id*e.factory.EpochDurationS
}

func (e RewardEpoch) Next() RewardEpoch {
	return RewardEpoch{Id: e.Id + 1, factory: e.factory}
}

func (e RewardEpoch) Previous() RewardEpoch {
	return RewardEpoch{Id: e.Id - 1, factory: e.factory}
}
