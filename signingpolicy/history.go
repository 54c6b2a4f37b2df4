package signingpolicy

import (
	"cmp"
	"fmt"
	"sort"
	"sync"
)

// History keeps every SigningPolicy the ingestion loop has seen, sorted by
// reward epoch (equivalently, by StartVotingRound), so a diagnostic query
// can recover which policy governed an arbitrary past voting round without
// the engine having to keep every policy reachable through its own fields.
type History struct {
	mu   sync.Mutex
	list []*SigningPolicy
}

func NewHistory() *History {
	return &History{}
}

// Add appends sp, which must belong to the reward epoch immediately after
// the most recently added one -- the same invariant the live rollover path
// already enforces, checked again here as a second line of defense.
func (h *History) Add(sp *SigningPolicy) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.list); n > 0 {
		prev := h.list[n-1]
		if sp.RewardEpoch.Id != prev.RewardEpoch.Id+1 {
			return fmt.Errorf("signingpolicy history: missing entry for reward epoch %d", sp.RewardEpoch.Id-1)
		}
		if sp.StartVotingRound < prev.StartVotingRound {
			return fmt.Errorf("signingpolicy history: reward epoch %d starts before its predecessor", sp.RewardEpoch.Id)
		}
	}
	h.list = append(h.list, sp)
	return nil
}

// find is the unlocked binary search; find the rightmost entry whose
// StartVotingRound is <= votingRoundId.
func (h *History) find(votingRoundId uint32) *SigningPolicy {
	i, found := sort.Find(len(h.list), func(i int) int {
		return cmp.Compare(votingRoundId, h.list[i].StartVotingRound)
	})
	if found {
		return h.list[i]
	}
	if i == 0 {
		return nil
	}
	return h.list[i-1]
}

// ForVotingRound returns the policy in effect for votingRoundId, or nil if
// votingRoundId predates every retained policy.
func (h *History) ForVotingRound(votingRoundId uint32) *SigningPolicy {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.find(votingRoundId)
}

// First returns the oldest retained policy, or nil if History is empty.
func (h *History) First() *SigningPolicy {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.list) == 0 {
		return nil
	}
	return h.list[0]
}

// Prune discards every retained policy whose StartVotingRound is <=
// votingRoundId, returning the reward epoch ids it dropped -- callers use
// this to bound memory once a voting round is far enough in the past that
// no validator will ever ask about it again.
func (h *History) Prune(votingRoundId uint32) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped []int64
	for len(h.list) > 0 && h.list[0].StartVotingRound <= votingRoundId {
		dropped = append(dropped, h.list[0].RewardEpoch.Id)
		h.list[0] = nil
		h.list = h.list[1:]
	}
	return dropped
}
