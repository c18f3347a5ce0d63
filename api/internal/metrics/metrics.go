package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport metrics
	UpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerbot_updates_total",
			Help: "Telegram updates received",
		},
		[]string{"kind"}, // "command", "text", "ignored"
	)

	// Business metrics
	Intents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerbot_intents_total",
			Help: "Intents handled by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	TransactionsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerbot_transactions_appended_total",
			Help: "Transactions appended to the log",
		},
		[]string{"type"},
	)

	PendingContexts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerbot_pending_contexts_total",
			Help: "Pending context lifecycle events",
		},
		[]string{"event"}, // "stored", "resolved", "expired", "superseded"
	)

	OracleFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerbot_oracle_fallbacks_total",
			Help: "Oracle calls that failed and fell back to the command parser",
		},
	)

	// Infrastructure metrics
	LogAppendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerbot_log_append_seconds",
			Help:    "Transaction log append latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"backend"},
	)
)
