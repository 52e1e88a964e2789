// Package metrics - счетчики prometheus для операций интеграций, вебхуков и сокетов гостей
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит все коллекторы процесса
type Metrics struct {
	registry *prometheus.Registry

	Operations       *prometheus.CounterVec
	LogWriteFailures prometheus.Counter
	ProviderRequests *prometheus.HistogramVec
	Webhooks         *prometheus.CounterVec
	Connections      prometheus.Gauge
	Deliveries       *prometheus.CounterVec
}

// New регистрирует коллекторы в собственном реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelops",
			Name:      "integration_operations_total",
			Help:      "Integration log entries by operation type and status.",
		}, []string{"operation_type", "status"}),
		LogWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hotelops",
			Name:      "integration_log_write_failures_total",
			Help:      "Integration log entries that could not be persisted.",
		}),
		ProviderRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotelops",
			Name:      "provider_request_duration_seconds",
			Help:      "Outbound provider request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		Webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelops",
			Name:      "webhooks_total",
			Help:      "Inbound webhooks by category and outcome.",
		}, []string{"category", "outcome"}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotelops",
			Name:      "guest_connections",
			Help:      "Open guest notification sockets.",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelops",
			Name:      "notification_deliveries_total",
			Help:      "Notification deliveries to guest sockets by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler отдает метрики в формате prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
