package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "loop",
		Subsystem: "realtime",
		Name:      "sessions",
		Help:      "Currently connected websocket sessions.",
	})

	metricDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loop",
		Subsystem: "realtime",
		Name:      "deliveries_total",
		Help:      "Envelopes enqueued to session send queues, by event type.",
	}, []string{"type"})

	metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loop",
		Subsystem: "realtime",
		Name:      "dropped_total",
		Help:      "Envelopes dropped due to backpressure, by event type.",
	}, []string{"type"})

	metricFanoutRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loop",
		Subsystem: "realtime",
		Name:      "presence_fanout_recipients",
		Help:      "Deduplicated recipient set size per presence broadcast.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
