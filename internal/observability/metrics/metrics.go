package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "skinclinic"

// ProviderMetrics tracks calls to the salon provider API.
type ProviderMetrics struct {
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	m := &ProviderMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total provider API calls by operation and status",
		}, []string{"operation", "status"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Latency of provider API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callLatency)
	return m
}

func (m *ProviderMetrics) ObserveProviderCall(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(operation, status).Inc()
	m.callLatency.WithLabelValues(operation).Observe(seconds)
}

// AvailabilityMetrics covers the slot aggregation flow.
type AvailabilityMetrics struct {
	requestsTotal   *prometheus.CounterVec
	staffFetches    *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "requests_total",
			Help:      "Availability lookups by outcome",
		}, []string{"outcome"}),
		staffFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "staff_fetches_total",
			Help:      "Per-staff slot fetches by status",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "request_duration_seconds",
			Help:      "End-to-end availability aggregation latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.staffFetches, m.requestDuration)
	return m
}

func (m *AvailabilityMetrics) ObserveRequest(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(seconds)
}

func (m *AvailabilityMetrics) ObserveStaffFetch(status string) {
	if m == nil {
		return
	}
	m.staffFetches.WithLabelValues(status).Inc()
}

// BookingMetrics counts booking submissions by terminal state.
type BookingMetrics struct {
	outcomesTotal *prometheus.CounterVec
	submitLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Booking submissions by terminal state and error kind",
		}, []string{"state", "kind"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "submit_latency_seconds",
			Help:      "Latency of booking submission to the provider",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomesTotal, m.submitLatency)
	return m
}

func (m *BookingMetrics) ObserveOutcome(state, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(state, kind).Inc()
	m.submitLatency.Observe(seconds)
}
