package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "router_supervisor_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	evaluationsTotal  *prometheus.CounterVec
	alertsCreated     *prometheus.CounterVec
	alertEventsTotal  *prometheus.CounterVec
	alertsSuppressed  prometheus.Counter
	alertsAutoCleared prometheus.Counter
	notifyFailures    prometheus.Counter

	pollCycleTotal   *prometheus.CounterVec
	pollCycleLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluations_total",
				Help: "Total threshold evaluations by result",
			},
			[]string{"result"},
		)
		alertsCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_created_total",
				Help: "Total alerts created by severity",
			},
			[]string{"severity"},
		)
		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)
		alertsSuppressed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alerts suppressed by the cooldown window",
			},
		)
		alertsAutoCleared = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_auto_resolved_total",
				Help: "Alerts auto-resolved after recovery",
			},
		)
		notifyFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_failures_total",
				Help: "Notification deliveries that failed",
			},
		)

		pollCycleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		)
		pollCycleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_cycle_latency_seconds",
				Help:    "Poll cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			evaluationsTotal,
			alertsCreated,
			alertEventsTotal,
			alertsSuppressed,
			alertsAutoCleared,
			notifyFailures,
			pollCycleTotal,
			pollCycleLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncEvaluation counts one threshold evaluation.
func IncEvaluation(result string) {
	if result == "" {
		result = resultSuccess
	}
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(result).Inc()
	}
}

// IncAlertCreated counts one created alert by severity.
func IncAlertCreated(severity string) {
	if severity == "" {
		severity = "unknown"
	}
	if alertsCreated != nil {
		alertsCreated.WithLabelValues(severity).Inc()
	}
}

// IncAlertEvent counts one alert lifecycle event.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncSuppressed counts one cooldown suppression.
func IncSuppressed() {
	if alertsSuppressed != nil {
		alertsSuppressed.Inc()
	}
}

// IncAutoResolved counts one recovery auto-resolution.
func IncAutoResolved() {
	if alertsAutoCleared != nil {
		alertsAutoCleared.Inc()
	}
}

// IncNotifyFailure counts one failed notification delivery.
func IncNotifyFailure() {
	if notifyFailures != nil {
		notifyFailures.Inc()
	}
}

// ObservePollCycle records poll cycle duration and result.
func ObservePollCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollCycleTotal != nil {
		pollCycleTotal.WithLabelValues(result).Inc()
	}
	if pollCycleLatency != nil {
		pollCycleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
