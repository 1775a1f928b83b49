// Package metrics exposes Prometheus collectors for the agent runtime.
//
// Collectors are package-level and registered with the default registry on
// first use, so any package can record without wiring a registry through.
// Handler serves them over HTTP.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic_agent"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	registerOnce sync.Once

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "operations_total",
			Help:      "Resource operations handled by the engine.",
		},
		[]string{"object", "operation", "outcome"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "notifications_total",
			Help:      "Change notifications raised by objects.",
		},
		[]string{"kind"},
	)
	telemetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "messages_total",
			Help:      "Inbound telemetry messages by result.",
		},
		[]string{"result"},
	)
	downlinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "downlinks_total",
			Help:      "Downlink commands published.",
		},
		[]string{"outcome"},
	)
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled tasks.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "operations_total",
			Help:      "Snapshot saves and restores.",
		},
		[]string{"snapshot", "operation", "outcome"},
	)
)

// Register adds all collectors to the default registry. It is idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			dispatchTotal,
			notificationsTotal,
			telemetryTotal,
			downlinksTotal,
			taskDuration,
			persistTotal,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// RecordDispatch counts one engine operation on an object.
func RecordDispatch(object, operation string, err error) {
	Register()
	dispatchTotal.WithLabelValues(object, operation, outcome(err)).Inc()
}

// RecordNotification counts a change notification; kind is "resource" or
// "instances".
func RecordNotification(kind string) {
	Register()
	notificationsTotal.WithLabelValues(kind).Inc()
}

// RecordTelemetry counts an inbound message; result is "applied", "ignored"
// or "malformed".
func RecordTelemetry(result string) {
	Register()
	telemetryTotal.WithLabelValues(result).Inc()
}

// RecordDownlink counts a downlink publish.
func RecordDownlink(err error) {
	Register()
	downlinksTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordTask observes a scheduler task run.
func RecordTask(d time.Duration, panicked bool) {
	Register()
	label := OutcomeOK
	if panicked {
		label = "panic"
	}
	taskDuration.WithLabelValues(label).Observe(d.Seconds())
}

// RecordPersist counts a snapshot save or restore.
func RecordPersist(snapshot, operation string, err error) {
	Register()
	persistTotal.WithLabelValues(snapshot, operation, outcome(err)).Inc()
}
