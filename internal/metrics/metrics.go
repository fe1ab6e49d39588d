// Package metrics exposes Prometheus collectors for the reminder engine.
// Everything registers on the default registry and is served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TimerFires counts reminder timer deliveries, including duplicates.
	TimerFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pillbot_timer_fires_total",
		Help: "Number of reminder timer fires delivered to the engine.",
	})

	// ReconcileVerdicts counts reconcile outcomes by verdict.
	ReconcileVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pillbot_reconcile_verdicts_total",
		Help: "Number of fire reconciliations by verdict.",
	}, []string{"verdict"})

	// ReconcileErrors counts reconciliations that failed before a verdict.
	ReconcileErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pillbot_reconcile_errors_total",
		Help: "Number of fire reconciliations that failed.",
	})

	// NotificationsSent counts reminder messages actually delivered to chats.
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pillbot_notifications_sent_total",
		Help: "Number of reminder notifications sent.",
	})

	// PendingTimers tracks how many schedules currently have an armed timer.
	PendingTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pillbot_pending_timers",
		Help: "Number of currently armed reminder timers.",
	})
)
