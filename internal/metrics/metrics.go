// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/edgecycle/internal/scheduler"
)

const namespace = "edgecycle"

// Outcome label values of account_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var _ scheduler.Observer = (*Metrics)(nil)

// Metrics is a scheduler.Observer backed by its own Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles       prometheus.Counter
	accountRuns  *prometheus.CounterVec
	stepFailures *prometheus.CounterVec
	lastDuration prometheus.Gauge
	nodePoints   *prometheus.GaugeVec
	accounts     prometheus.Gauge
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of completed processing cycles.",
		}),
		accountRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_runs_total",
			Help:      "Account pipeline runs by outcome.",
		}, []string{"outcome"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Pipeline failures by step.",
		}, []string{"step"}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_duration_seconds",
			Help:      "Wall time of the last completed cycle.",
		}),
		nodePoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_points",
			Help:      "Last observed reward balance per wallet.",
		}, []string{"address"}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts",
			Help:      "Number of wallets processed per cycle.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.accountRuns,
		m.stepFailures,
		m.lastDuration,
		m.nodePoints,
		m.accounts,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleStarted implements scheduler.Observer.
func (m *Metrics) CycleStarted(_ context.Context, info scheduler.CycleInfo) {
	m.accounts.Set(float64(info.Accounts))
}

// AccountFinished implements scheduler.Observer.
func (m *Metrics) AccountFinished(_ context.Context, _ scheduler.CycleInfo, r scheduler.AccountResult) {
	if r.OK() {
		m.accountRuns.WithLabelValues(OutcomeSuccess).Inc()
		m.nodePoints.WithLabelValues(r.Address).Set(float64(r.Points))
		return
	}

	m.accountRuns.WithLabelValues(OutcomeFailure).Inc()
	step := scheduler.FailedStep(r.Err)
	if step == "" {
		step = "unknown"
	}
	m.stepFailures.WithLabelValues(string(step)).Inc()
}

// CycleFinished implements scheduler.Observer.
func (m *Metrics) CycleFinished(_ context.Context, report scheduler.CycleReport) {
	m.cycles.Inc()
	m.lastDuration.Set(report.Duration().Seconds())
}
