package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the various metrics used for monitoring the application.
// It includes counters for roster operations and webhook notifications,
// a gauge for the size of the last loaded employee list, and histograms
// for database query and webhook durations.
type Metrics struct {
	Operations           *prometheus.CounterVec
	EmployeesLoaded      prometheus.Gauge
	Notifications        *prometheus.CounterVec
	NotificationDuration prometheus.Histogram
	DBQueryDuration      *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with the provided Registerer.
//
// Parameters:
//   - reg: A prometheus.Registerer used to register the metrics.
//
// Returns:
//   - A pointer to the newly created Metrics instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_operations_total",
			Help: "Total roster operations by name and outcome.",
		}, []string{"operation", "status"}),
		EmployeesLoaded: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "staffdesk_employees_loaded",
			Help: "Number of employees in the last successfully fetched list.",
		}),
		Notifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_notifications_total",
			Help: "Total email webhook calls by outcome.",
		}, []string{"status"}),
		NotificationDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "staffdesk_notification_duration_seconds",
			Help:    "Duration of email webhook calls.",
			Buckets: prometheus.DefBuckets,
		}),
		DBQueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_db_query_duration_seconds",
			Help:    "Duration of database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type"}), // query_type: 'list_employees', 'delete_employee'
	}

	metrics.Notifications.WithLabelValues("success")
	metrics.Notifications.WithLabelValues("failure")

	return metrics
}
