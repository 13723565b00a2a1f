package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ProductsCreated   prometheus.Counter
	PaymentsAccepted  prometheus.Counter
	EscrowReleased    prometheus.Counter
	EscrowRefunded    prometheus.Counter
	ProductsRecalled  prometheus.Counter
	Violations        prometheus.Counter
	ReadingsLogged    prometheus.Counter
	UsersRegistered   prometheus.Counter
	RequestLatencySec *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ProductsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_products_created_total",
			Help: "Total number of products introduced into the custody chain",
		}),
		PaymentsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_payments_accepted_total",
			Help: "Total number of escrow payments accepted",
		}),
		EscrowReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_escrow_released_total",
			Help: "Total number of escrow releases to sellers",
		}),
		EscrowRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_escrow_refunded_total",
			Help: "Total number of administrative escrow refunds",
		}),
		ProductsRecalled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_products_recalled_total",
			Help: "Total number of administrative product recalls",
		}),
		Violations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_temperature_violations_total",
			Help: "Total number of out-of-range readings that signalled a violation",
		}),
		ReadingsLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_environment_readings_total",
			Help: "Total number of environmental readings recorded",
		}),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_users_registered_total",
			Help: "Total number of identities registered in the role directory",
		}),
		RequestLatencySec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coldchain_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records one HTTP request observation.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatencySec.WithLabelValues(route, status).Observe(seconds)
}
