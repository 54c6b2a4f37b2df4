package votinground

import (
	"testing"

	"flare-observer/entity"
	"flare-observer/epoch"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func votingFactory() *epoch.VotingEpochFactory {
	return &epoch.VotingEpochFactory{FirstEpochStartS: 0, EpochDurationS: 90}
}

func TestWParsedPayloadList_ExtractLatest(t *testing.T) {
	l := &WParsedPayloadList[int]{}
	l.Items = append(l.Items,
		WParsedPayload[int]{Payload: 1, Tx: WTxData{Timestamp: 10}},
		WParsedPayload[int]{Payload: 2, Tx: WTxData{Timestamp: 40}},
		WParsedPayload[int]{Payload: 3, Tx: WTxData{Timestamp: 90}}, // outside [10,90)
	)

	got, ok := l.ExtractLatest(10, 90)
	require.True(t, ok)
	require.Equal(t, 2, got.Payload)

	_, ok = l.ExtractLatest(100, 200)
	require.False(t, ok)
}

func TestParsedPayloadMapper_GetNeverNil(t *testing.T) {
	m := NewParsedPayloadMapper[int]()
	l := m.Get(addr(1))
	require.NotNil(t, l)
	require.Empty(t, l.Items)
}

func TestParsedPayloadMapper_InsertKeyedByIdentity(t *testing.T) {
	m := NewParsedPayloadMapper[string]()
	e := &entity.Entity{IdentityAddress: addr(7)}
	m.Insert(e, "hello", WTxData{Timestamp: 1})

	l := m.Get(addr(7))
	require.Len(t, l.Items, 1)
	require.Equal(t, "hello", l.Items[0].Payload)
}

func TestAttestationRequestMapper_SortedDedupesAndReverses(t *testing.T) {
	m := &AttestationRequestMapper{}
	m.Agg = []AttestationRequest{
		{Data: []byte("a"), Block: 2, LogIndex: 0},
		{Data: []byte("b"), Block: 1, LogIndex: 1},
		{Data: []byte("a"), Block: 1, LogIndex: 0}, // duplicate of "a", earlier -- should win and be kept once
	}

	sorted := m.Sorted()
	require.Len(t, sorted, 2)
	// ascending (block,logIndex) order is {a@1,0}, {b@1,1}, {a@2,0}(dup, dropped) -> reversed: b, a
	require.Equal(t, "b", string(sorted[0].Data))
	require.Equal(t, "a", string(sorted[1].Data))
}

func TestManager_GetIsLazyAndIdempotent(t *testing.T) {
	m := NewManager(-1)
	f := votingFactory()
	v := f.FromID(5)

	r1 := m.Get(v)
	r2 := m.Get(v)
	require.Same(t, r1, r2)
}

func TestManager_FinalizeRespectsGracePeriodAndOrder(t *testing.T) {
	m := NewManager(-1)
	f := votingFactory()

	v0 := f.FromID(0)
	v1 := f.FromID(1)
	m.Get(v1) // inserted first
	m.Get(v0) // inserted second

	// v0 ends at 90, v1 (its grace period) ends at 180. At ts=181 v0 is finalizable.
	finalized := m.Finalize(181)
	require.Len(t, finalized, 1)
	require.Equal(t, int64(0), finalized[0].VotingEpoch.Id)
	require.Equal(t, int64(0), m.Finalized)

	// v1 isn't finalizable yet (its own grace period ends at 270)
	require.Empty(t, m.Finalize(200))

	finalized = m.Finalize(271)
	require.Len(t, finalized, 1)
	require.Equal(t, int64(1), finalized[0].VotingEpoch.Id)
}

func TestManager_FinalizeDropsAlreadyFinalizedRounds(t *testing.T) {
	m := NewManager(5)
	f := votingFactory()

	r := m.Get(f.FromID(3)) // already <= Finalized
	require.NotNil(t, r)

	finalized := m.Finalize(10000)
	require.Empty(t, finalized)
}
