// Package metrics records workflow, poll and upload activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Recorder receives observations from the workflow layer.
type Recorder interface {
	ObserveAction(action, outcome string, status int, duration time.Duration)
	IncValidationFailure(action string)
	IncPollTick(status string)
	IncUpload(event string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveAction(string, string, int, time.Duration) {}
func (Nop) IncValidationFailure(string)                      {}
func (Nop) IncPollTick(string)                               {}
func (Nop) IncUpload(string)                                 {}

// PrometheusRecorder implements Recorder on a private registry so several
// recorders can coexist in one process.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	actionsTotal    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	validationTotal *prometheus.CounterVec
	pollTicksTotal  *prometheus.CounterVec
	uploadsTotal    *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrate_actions_total",
				Help: "Dispatched panel actions by action name, outcome kind and HTTP status",
			},
			[]string{"action", "outcome", "status"},
		),
		actionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "narrate_action_duration_seconds",
				Help:    "Time from dispatch to interpreted outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		validationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrate_validation_failures_total",
				Help: "Submissions stopped by client-side validation",
			},
			[]string{"action"},
		),
		pollTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrate_poll_ticks_total",
				Help: "Poll ticks by observed task status",
			},
			[]string{"status"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "narrate_upload_events_total",
				Help: "Upload widget events by kind",
			},
			[]string{"event"},
		),
	}
}

// ObserveAction records one interpreted outcome.
func (p *PrometheusRecorder) ObserveAction(action, outcome string, status int, duration time.Duration) {
	p.actionsTotal.WithLabelValues(action, outcome, fmt.Sprintf("%d", status)).Inc()
	p.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncValidationFailure(action string) {
	p.validationTotal.WithLabelValues(action).Inc()
}

func (p *PrometheusRecorder) IncPollTick(status string) {
	p.pollTicksTotal.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncUpload(event string) {
	p.uploadsTotal.WithLabelValues(event).Inc()
}

// Gatherer exposes the registry, e.g. for promhttp.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteText writes every gathered family in the text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
