package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveAdmission("create", "ok", 0.01)
	m.ObserveAdmission("create", "slot_conflict", 0.02)
	m.ObserveAdmission("create", "slot_conflict", 0.02)
	m.ObserveAvailability("tenant-1", "ok", 12, 0.003)
	m.ObserveAvailability("tenant-1", "ok", 0, 0.001)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "chairbook_bookings_admissions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			counts[outcomeLabel(metric)] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), counts["ok"])
	assert.Equal(t, float64(2), counts["slot_conflict"])

	var slots float64
	for _, mf := range families {
		if mf.GetName() == "chairbook_availability_slots_generated_total" {
			slots = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(12), slots)
}

func outcomeLabel(m *dto.Metric) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "outcome" {
			return lp.GetValue()
		}
	}
	return ""
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAdmission("move", "busy", 0.1)
	m.ObserveAvailability("tenant-1", "error", 0, 0.1)
}
