package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_events_total",
	Help: "Number of moderation lifecycle events emitted",
}, []string{"kind"})

var filterActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_filter_actions_total",
	Help: "Number of messages, invites and members acted on by reactive filters",
}, []string{"filter"})

var filterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_filter_errors_total",
	Help: "Number of reactive filter runs that failed",
}, []string{"filter"})

var mutesReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_mutes_reconciled_total",
	Help: "Number of temporary mutes handled at startup",
}, []string{"outcome"})

func countEvent(e Event) {
	eventsEmitted.WithLabelValues(string(e.Kind())).Inc()
}

func countReconcile(rep ReconcileReport) {
	mutesReconciled.WithLabelValues("armed").Add(float64(rep.Armed))
	mutesReconciled.WithLabelValues("released").Add(float64(rep.Released))
	mutesReconciled.WithLabelValues("skipped").Add(float64(rep.Skipped))
}
