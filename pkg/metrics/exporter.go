// Package metrics exports Prometheus counters and histograms for the
// platform's operations. Same registration/HTTP-server shape as the
// teacher's blockchain exporter, metric names and label sets renamed
// from block/consensus concerns to wallet/crypto/agent/escrow ones.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter provides Prometheus metrics.
type Exporter struct {
	port   int
	server *http.Server

	// Metrics
	TransactionsTotal    *prometheus.CounterVec
	SettlementDuration   *prometheus.HistogramVec
	TokenLedgerSuccess   prometheus.Counter
	TokenLedgerFailures  prometheus.Counter
	RateLimitExceeded    *prometheus.CounterVec
	FraudBlocked         *prometheus.CounterVec
	EscrowsExpired       prometheus.Counter
}

// NewExporter creates a new Prometheus exporter.
func NewExporter(port int) *Exporter {
	e := &Exporter{
		port: port,
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afritokenid_transactions_total",
				Help: "Total number of settled transactions by kind and status",
			},
			[]string{"kind", "status"},
		),
		SettlementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "afritokenid_settlement_duration_ms",
				Help:    "Operation settlement duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"operation"},
		),
		TokenLedgerSuccess: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afritokenid_tokenledger_quorum_success_total",
				Help: "Total external ledger transfers that reached quorum",
			},
		),
		TokenLedgerFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afritokenid_tokenledger_quorum_failures_total",
				Help: "Total external ledger transfers that failed to reach quorum",
			},
		),
		RateLimitExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afritokenid_rate_limit_exceeded_total",
				Help: "Total rate limit exceeded events",
			},
			[]string{"type"},
		),
		FraudBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afritokenid_fraud_blocked_total",
				Help: "Total operations blocked by the fraud/limits evaluator",
			},
			[]string{"reason"},
		),
		EscrowsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afritokenid_escrows_expired_total",
				Help: "Total escrows swept to Expired on lazy read",
			},
		),
	}

	// Register metrics
	prometheus.MustRegister(
		e.TransactionsTotal,
		e.SettlementDuration,
		e.TokenLedgerSuccess,
		e.TokenLedgerFailures,
		e.RateLimitExceeded,
		e.FraudBlocked,
		e.EscrowsExpired,
	)

	return e
}

// Start starts the metrics HTTP server
func (e *Exporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	e.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", e.port),
		Handler: mux,
	}

	return e.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}
