package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the login flow and the access guard.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FlowsStarted     prometheus.Counter
	FlowsCompleted   *prometheus.CounterVec
	LoginFailures    *prometheus.CounterVec
	ExchangeDuration prometheus.Histogram
	GuardDecisions   *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, alongside
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FlowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "oauth_login_flows_started_total",
			Help: "Total number of authorization requests sent to the provider",
		}),
		FlowsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_login_flows_completed_total",
			Help: "Total number of callbacks processed, by outcome",
		}, []string{"outcome"}),
		LoginFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_login_failures_total",
			Help: "Total number of failed callbacks, by reason",
		}, []string{"reason"}),
		ExchangeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oauth_login_exchange_duration_seconds",
			Help:    "Duration of authorization code exchanges with the provider",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GuardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_login_guard_decisions_total",
			Help: "Total number of access guard decisions, by decision",
		}, []string{"decision"}),
	}
}

// Registry exposes the registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncrementFlowStarted records a redirect to the provider.
func (m *Metrics) IncrementFlowStarted() {
	if m == nil {
		return
	}
	m.FlowsStarted.Inc()
}

// IncrementFlowCompleted records a callback reaching a terminal state.
func (m *Metrics) IncrementFlowCompleted(outcome string) {
	if m == nil {
		return
	}
	m.FlowsCompleted.WithLabelValues(outcome).Inc()
}

// IncrementLoginFailure records why a callback failed.
func (m *Metrics) IncrementLoginFailure(reason string) {
	if m == nil {
		return
	}
	m.LoginFailures.WithLabelValues(reason).Inc()
}

// ObserveExchange records the duration of a code exchange.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveExchange(start time.Time) {
	if m == nil {
		return
	}
	m.ExchangeDuration.Observe(time.Since(start).Seconds())
}

// IncrementGuardDecision records an allow or deny from the access guard.
func (m *Metrics) IncrementGuardDecision(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(decision).Inc()
}
