package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func okServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.Close)
	return s
}

func failServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestSender_Send_AllEnabledSinksSucceed(t *testing.T) {
	var discordHits, slackHits, genericHits int32
	cfg := Config{
		Discord: &DiscordConfig{WebhookURL: okServer(t, &discordHits).URL},
		Slack:   &SlackConfig{WebhookURL: okServer(t, &slackHits).URL},
		Generic: &GenericConfig{URL: okServer(t, &genericHits).URL},
	}

	msg := NewMessageBuilder().WithChainID(14).Build(LevelWarning, "degraded participation")
	err := NewSender(cfg).Send(context.Background(), msg)

	require.NoError(t, err)
	require.EqualValues(t, 1, discordHits)
	require.EqualValues(t, 1, slackHits)
	require.EqualValues(t, 1, genericHits)
}

func TestSender_Send_FailingSinkDoesNotSuppressOthers(t *testing.T) {
	var failHits, okHits int32
	cfg := Config{
		Discord: &DiscordConfig{WebhookURL: failServer(t, &failHits).URL},
		Slack:   &SlackConfig{WebhookURL: okServer(t, &okHits).URL},
	}

	msg := NewMessageBuilder().Build(LevelCritical, "offence")

	// No deadline: the failing sink exhausts its retries before the next
	// sink is tried, and a shared deadline would expire first.
	err := NewSender(cfg).Send(context.Background(), msg)

	require.Error(t, err)
	require.GreaterOrEqual(t, int(atomic.LoadInt32(&failHits)), 1)
	require.EqualValues(t, 1, okHits)
}

func TestMessageBuilder_CarriesBoundContext(t *testing.T) {
	b := NewMessageBuilder().WithChainID(16).WithProtocol(100)
	msg := b.Build(LevelInfo, "absent, as expected")

	require.Equal(t, int64(16), msg.ChainID)
	require.Equal(t, uint8(100), msg.Protocol)
	require.Equal(t, "INFO absent, as expected", msg.String())
}
