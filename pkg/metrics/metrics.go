// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestiva",
		Subsystem: "widget",
		Name:      "tokens_issued_total",
		Help:      "Widget tokens issued, by client.",
	}, []string{"client_id"})

	TokenIssueRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestiva",
		Subsystem: "widget",
		Name:      "token_issue_rejections_total",
		Help:      "Token issuance refusals, by internal reason.",
	}, []string{"reason"})

	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestiva",
		Subsystem: "widget",
		Name:      "token_validations_total",
		Help:      "Token validations, by result and internal reason.",
	}, []string{"result", "reason"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestiva",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429, by route.",
	}, []string{"route"})

	HandshakeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vestiva",
		Subsystem: "embed",
		Name:      "handshake_duration_seconds",
		Help:      "Host loader initialization time until ready or failed.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy", "outcome"})
)
