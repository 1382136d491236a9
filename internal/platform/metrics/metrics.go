package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	StateTransitions  *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	BatchItemsChanged *prometheus.CounterVec
	OtpCodesSent      prometheus.Counter
	ProcessesFailed   prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New creates all metrics and registers them on the default registry.
func New() *Metrics {
	return NewFor(prometheus.DefaultRegisterer)
}

// NewFor creates all metrics on the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_state_transitions_total",
			Help: "Identity verification state transitions by target phase and status",
		}, []string{"phase", "status"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provider_errors_total",
			Help: "Verification provider call failures by provider and class",
		}, []string{"provider", "class"}),
		BatchItemsChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_batch_items_changed_total",
			Help: "Entities changed by reconciliation jobs, by job name",
		}, []string{"job"}),
		OtpCodesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_otp_codes_sent_total",
			Help: "Total OTP codes sent including resends",
		}),
		ProcessesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_processes_failed_total",
			Help: "Onboarding processes terminated as failed",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
