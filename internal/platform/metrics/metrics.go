package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	UsersCreated     prometheus.Counter
	DebtsCreated     prometheus.Counter
	PaymentsRecorded prometheus.Counter
	StockMovements   *prometheus.CounterVec
	LoginFailures    prometheus.Counter
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_users_created_total",
			Help: "Total number of user accounts created",
		}),
		DebtsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_debts_created_total",
			Help: "Total number of debts created",
		}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_payments_recorded_total",
			Help: "Total number of payments recorded against debts",
		}),
		StockMovements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_stock_movements_total",
			Help: "Total number of stock movements recorded, by direction",
		}, []string{"type"}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_login_failures_total",
			Help: "Total number of failed login attempts",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tally_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementDebtsCreated() {
	m.DebtsCreated.Inc()
}

func (m *Metrics) IncrementPaymentsRecorded() {
	m.PaymentsRecorded.Inc()
}

func (m *Metrics) IncrementStockMovements(movementType string) {
	m.StockMovements.WithLabelValues(movementType).Inc()
}

func (m *Metrics) IncrementLoginFailures() {
	m.LoginFailures.Inc()
}

func (m *Metrics) ObserveRequestLatency(path, method, status string, seconds float64) {
	m.RequestLatency.WithLabelValues(path, method, status).Observe(seconds)
}
