// Package metrics exposes the observer's Prometheus gauges and counters
// over github.com/prometheus/client_golang.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flare_observer_blocks_processed_total",
		Help: "Total number of blocks ingested.",
	})

	CurrentVotingEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flare_observer_current_voting_epoch",
		Help: "Id of the most recently ingested block's voting epoch.",
	})

	SigningPolicyRewardEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flare_observer_signing_policy_reward_epoch",
		Help: "Reward epoch id of the currently active signing policy.",
	})

	RoundsFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flare_observer_rounds_finalized_total",
		Help: "Total number of voting rounds finalized.",
	})

	IssuesEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flare_observer_issues_emitted_total",
		Help: "Total number of validator issues emitted, by level.",
	}, []string{"level"})
)

// Server serves the /metrics endpoint on a dedicated listener so scraping
// never shares a port with anything request-handling (there is none --
// this process has no other HTTP surface).
type Server struct {
	httpServer *http.Server
}

func NewServer(listenAddr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{Addr: listenAddr, Handler: mux}}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
