package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts dispatched commands by name and outcome
	// ("ok" or the codeName of the failure envelope).
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jongodb_commands_total",
			Help: "Total number of commands dispatched by name and result",
		},
		[]string{"command", "result"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jongodb_command_duration_seconds",
			Help:    "Command dispatch duration in seconds by command name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	CursorsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jongodb_cursors_open",
			Help: "Number of cursors currently registered",
		},
	)

	CursorsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jongodb_cursors_opened_total",
			Help: "Total number of cursors ever opened",
		},
	)

	GetMoreTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jongodb_getmore_total",
			Help: "Total getMore calls by outcome (drained, partial, not_found)",
		},
		[]string{"outcome"},
	)

	TransactionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jongodb_transactions_active",
			Help: "Number of sessions with an in-progress transaction",
		},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jongodb_transactions_total",
			Help: "Total number of transactions by outcome (committed, aborted)",
		},
		[]string{"outcome"},
	)

	WriteConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jongodb_write_conflicts_total",
			Help: "Total number of WriteConflict errors returned",
		},
	)

	DuplicateKeyErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jongodb_duplicate_key_errors_total",
			Help: "Total number of DuplicateKey errors returned",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(CursorsOpen)
	prometheus.MustRegister(CursorsOpenedTotal)
	prometheus.MustRegister(GetMoreTotal)
	prometheus.MustRegister(TransactionsActive)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(WriteConflictsTotal)
	prometheus.MustRegister(DuplicateKeyErrorsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
