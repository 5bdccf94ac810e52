package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retrievalOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcast",
			Name:      "retrieval_outcomes_total",
			Help:      "Retrieval attempts by outcome and entry point.",
		},
		[]string{"outcome", "channel"},
	)

	fanoutSendsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcast",
			Name:      "fanout_sends_total",
			Help:      "Per-recipient fan-out sends.",
		},
		[]string{"kind", "status"}, // kind: photo, text; status: success, failure
	)

	publishDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "broadcast",
			Name:      "publish_duration_seconds",
			Help:      "Duration of a publish including fan-out.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	operatorNotifyFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "broadcast",
			Name:      "operator_notify_failures_total",
			Help:      "Operator notifications the transport rejected.",
		},
	)
)
