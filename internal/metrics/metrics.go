// Package metrics provides Prometheus instrumentation for the trade store.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job label used by Push.
const JobName = "tradestore"

// Save outcomes used as the "outcome" label of TradeSavesTotal.
const (
	OutcomeSaved        = "saved"
	OutcomeStale        = "stale"
	OutcomePastMaturity = "past_maturity"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

var (
	// TradeSavesTotal counts SaveTrade calls, partitioned by outcome.
	TradeSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_trade_saves_total",
		Help: "Total number of trade save attempts by outcome",
	}, []string{"outcome"})

	// TradeSaveLatency tracks SaveTrade duration including validation reads.
	TradeSaveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradestore_trade_save_latency_seconds",
		Help:    "Trade save latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	// ExpirySweepsTotal counts expiry sweeps run.
	ExpirySweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradestore_expiry_sweeps_total",
		Help: "Total number of expiry sweeps executed",
	})

	// TradesExpiredTotal tracks cumulative rows flipped to expired.
	TradesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradestore_trades_expired_total",
		Help: "Cumulative number of trade rows marked expired",
	})
)

// Push sends every collector in the default registry to the Pushgateway at
// url, replacing the group for JobName and the given command label.
func Push(ctx context.Context, url, command string) error {
	err := push.New(url, JobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("command", command).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
