// Package metrics registers the Prometheus collectors shared by the server
// and the client cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantlog_events_written_total",
		Help: "Total number of event instances written, labelled by storage discipline.",
	}, []string{"discipline"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantlog_events_rejected_total",
		Help: "Total number of event writes rejected before storage, labelled by reason.",
	}, []string{"reason"})

	EventTypesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plantlog_event_types_created_total",
		Help: "Total number of event types created at runtime or from the seed file.",
	})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantlog_notifications_published_total",
		Help: "Total number of dirty notifications published, labelled by kind.",
	}, []string{"kind"})

	ObserversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plantlog_observers_connected",
		Help: "Current number of subscribed notification observers.",
	})

	ObserversEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plantlog_observers_evicted_total",
		Help: "Total number of observers evicted for not draining their queue.",
	})

	PublishWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plantlog_publish_wait_ms",
		Help:    "Time a publish spent waiting on observer queues, in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
	})

	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantlog_reconcile_outcomes_total",
		Help: "Total number of client reads, labelled by reconciler outcome.",
	}, []string{"outcome"})
)
