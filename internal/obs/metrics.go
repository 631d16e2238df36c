package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's domain collectors.
type Metrics struct {
	QuotesTotal          *prometheus.CounterVec
	MissingLabelsTotal   *prometheus.CounterVec
	CarrierRequestsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, or on the default registerer when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Shipping rate quotes returned, by service code.",
		}, []string{"service"}),
		MissingLabelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_labels_total",
			Help:      "Quotes emitted without a carrier service name.",
		}, []string{"service"}),
		CarrierRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_requests_total",
			Help:      "Calls to the carrier API, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(m.QuotesTotal, m.MissingLabelsTotal, m.CarrierRequestsTotal)
	return m
}

// Quote counts one quote for service. Safe on a nil receiver.
func (m *Metrics) Quote(service string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(service).Inc()
}

// MissingLabel counts one quote emitted without a label.
func (m *Metrics) MissingLabel(service string) {
	if m == nil {
		return
	}
	m.MissingLabelsTotal.WithLabelValues(service).Inc()
}

// CarrierRequest counts one carrier API call.
func (m *Metrics) CarrierRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.CarrierRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
