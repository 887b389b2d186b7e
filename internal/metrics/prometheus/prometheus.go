package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slok/deploywatch/internal/metrics"
	"github.com/slok/deploywatch/internal/model"
)

const namespace = "deploywatch"

// Recorder is the Prometheus implementation of metrics.Recorder.
type Recorder struct {
	ticks           *prometheus.CounterVec
	sessionsDone    *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
}

var _ metrics.Recorder = (*Recorder)(nil)

// NewRecorder returns a new recorder that registers its metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ticks_total",
			Help:      "Total number of polling ticks.",
		}, []string{"fetch_failed"}),
		sessionsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finished_total",
			Help:      "Total number of sessions that reached a terminal status.",
		}, []string{"status", "reason"}),
		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Duration of sessions until they reach a terminal status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions being polled.",
		}),
	}
}

func (r *Recorder) ObserveSessionTick(_ context.Context, fetchFailed bool) {
	r.ticks.WithLabelValues(strconv.FormatBool(fetchFailed)).Inc()
}

func (r *Recorder) ObserveSessionFinished(_ context.Context, status model.Status, reason model.Reason, duration time.Duration) {
	r.sessionsDone.WithLabelValues(string(status), string(reason)).Inc()
	r.sessionDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (r *Recorder) AddActiveSessions(_ context.Context, delta int) {
	r.activeSessions.Add(float64(delta))
}
