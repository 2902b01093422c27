package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated     prometheus.Counter
	DevicesCreated   prometheus.Counter
	RepairsCreated   prometheus.Counter
	RepairsCompleted prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all metrics against the given registerer. Tests
// pass a fresh registry so suites never collide on registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mobilefix_users_created_total",
			Help: "Total number of users created.",
		}),
		DevicesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mobilefix_devices_created_total",
			Help: "Total number of devices registered.",
		}),
		RepairsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mobilefix_repairs_created_total",
			Help: "Total number of repairs opened.",
		}),
		RepairsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mobilefix_repairs_completed_total",
			Help: "Total number of repairs moved to COMPLETED.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mobilefix_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m != nil {
		m.UsersCreated.Inc()
	}
}

func (m *Metrics) IncrementDevicesCreated() {
	if m != nil {
		m.DevicesCreated.Inc()
	}
}

func (m *Metrics) IncrementRepairsCreated() {
	if m != nil {
		m.RepairsCreated.Inc()
	}
}

func (m *Metrics) IncrementRepairsCompleted() {
	if m != nil {
		m.RepairsCompleted.Inc()
	}
}
