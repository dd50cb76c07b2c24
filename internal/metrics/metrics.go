// Package metrics exposes Prometheus counters for the editor and copilot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// dispatches tracks commands dispatched to the editor store
	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_editor_dispatch_total",
			Help: "Total commands dispatched by command type and whether the document changed",
		},
		[]string{"command", "changed"},
	)

	// historyEntries tracks the undo and redo depth of the last store observed
	historyEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rowboat_editor_history_entries",
			Help: "Number of undo and redo entries in the editor history",
		},
		[]string{"direction"},
	)

	// saves tracks autosave attempts
	saves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_autosave_total",
			Help: "Total autosave attempts by result",
		},
		[]string{"result"},
	)

	// saveDuration tracks how long saves take
	saveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rowboat_autosave_duration_seconds",
			Help:    "Autosave duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// copilotParts tracks classified copilot message parts
	copilotParts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_copilot_parts_total",
			Help: "Total copilot message parts by part type",
		},
		[]string{"type"},
	)

	// copilotApplied tracks applied copilot actions
	copilotApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_copilot_applied_fields_total",
			Help: "Total fields applied from copilot actions by config type",
		},
		[]string{"config_type"},
	)

	// watchEvents tracks file events seen by the workflow watcher
	watchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_watch_events_total",
			Help: "Total file watcher events by event type",
		},
		[]string{"event_type"},
	)

	// validations tracks workflow validation results from watch mode
	validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowboat_validation_total",
			Help: "Total workflow validations by result",
		},
		[]string{"result"},
	)
)

// RecordDispatch increments the dispatch counter.
func RecordDispatch(command string, changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	dispatches.WithLabelValues(command, label).Inc()
}

// RecordHistory sets the history depth gauges.
func RecordHistory(undo, redo int) {
	historyEntries.WithLabelValues("undo").Set(float64(undo))
	historyEntries.WithLabelValues("redo").Set(float64(redo))
}

// RecordSave records one autosave attempt.
func RecordSave(elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	saves.WithLabelValues(result).Inc()
	saveDuration.Observe(elapsed.Seconds())
}

// RecordPart increments the part counter for one part type.
func RecordPart(partType string) {
	copilotParts.WithLabelValues(partType).Inc()
}

// RecordApplied adds the number of applied fields for a config type.
func RecordApplied(configType string, fields int) {
	copilotApplied.WithLabelValues(configType).Add(float64(fields))
}

// RecordValidation records one validation result.
// result should be one of: valid, invalid, error
func RecordValidation(result string) {
	validations.WithLabelValues(result).Inc()
}

// RecordWatchEvent increments the watcher event counter.
func RecordWatchEvent(eventType string) {
	watchEvents.WithLabelValues(eventType).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
