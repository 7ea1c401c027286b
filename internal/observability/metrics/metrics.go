package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability and admission flows.
type BookingMetrics struct {
	admissionsTotal  *prometheus.CounterVec
	admissionLatency *prometheus.HistogramVec
	slotsGenerated   *prometheus.CounterVec
	availabilityTime *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		admissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chairbook",
			Subsystem: "bookings",
			Name:      "admissions_total",
			Help:      "Booking admissions by operation and outcome",
		}, []string{"operation", "outcome"}),
		admissionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chairbook",
			Subsystem: "bookings",
			Name:      "admission_latency_seconds",
			Help:      "Latency of booking admissions including the serialized section",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chairbook",
			Subsystem: "availability",
			Name:      "slots_generated_total",
			Help:      "Slots returned by availability queries",
		}, []string{"tenant_id"}),
		availabilityTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chairbook",
			Subsystem: "availability",
			Name:      "query_latency_seconds",
			Help:      "Latency of availability queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.admissionsTotal, m.admissionLatency, m.slotsGenerated, m.availabilityTime)
	return m
}

// ObserveAdmission records one create/move/resize/transition attempt.
func (m *BookingMetrics) ObserveAdmission(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.admissionsTotal.WithLabelValues(operation, outcome).Inc()
	m.admissionLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveAvailability(tenantID, outcome string, slots int, seconds float64) {
	if m == nil {
		return
	}
	if slots > 0 {
		m.slotsGenerated.WithLabelValues(tenantID).Add(float64(slots))
	}
	m.availabilityTime.WithLabelValues(outcome).Observe(seconds)
}
