package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AccountsCreated   prometheus.Counter
	Logins            *prometheus.CounterVec
	AuthFailures      *prometheus.CounterVec
	Lockouts          prometheus.Counter
	LedgerAppends     *prometheus.CounterVec
	InsufficientFunds prometheus.Counter
	PinScanPopulation prometheus.Histogram
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTest registers metrics on a private registry so test suites can build
// as many handler stacks as they need without duplicate-registration panics.
func NewForTest() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_accounts_created_total",
			Help: "Total number of accounts created.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_logins_total",
			Help: "Successful logins by method.",
		}, []string{"method"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_auth_failures_total",
			Help: "Failed authentication attempts by method.",
		}, []string{"method"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_auth_lockouts_total",
			Help: "Callers locked out after repeated auth failures.",
		}),
		LedgerAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_ledger_appends_total",
			Help: "Committed ledger appends by transaction kind.",
		}, []string{"kind"}),
		InsufficientFunds: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_insufficient_funds_total",
			Help: "Ledger appends rejected for insufficient funds.",
		}),
		PinScanPopulation: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "corebank_pin_scan_population",
			Help:    "Accounts examined per PIN-scan login.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corebank_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
