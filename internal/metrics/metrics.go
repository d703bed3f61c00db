package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nodues"

var (
	// Transitions counts engine operations by outcome (ok, conflict, invalid, error).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Workflow engine operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// Conflicts counts lost compare-and-swap races.
	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_total",
		Help:      "Concurrent writers that lost a compare-and-swap.",
	}, []string{"operation"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Events not delivered to a slow in-process subscriber.",
	})

	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_failed_total",
		Help:      "Publish attempts that failed, by event type.",
	}, []string{"event_type"})

	CertificatesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificates_enqueued_total",
		Help:      "Certificate generation tasks handed to the queue.",
	})
)
