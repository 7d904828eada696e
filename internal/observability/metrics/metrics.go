package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	createdTotal        *prometheus.CounterVec
	cancelledTotal      prometheus.Counter
	conflictsTotal      *prometheus.CounterVec
	availabilitySeconds *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Reservations committed, by calendar sync outcome",
		}, []string{"sync_status"}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "bookings",
			Name:      "cancelled_total",
			Help:      "Reservations cancelled",
		}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "bookings",
			Name:      "conflicts_total",
			Help:      "Bookings rejected for an occupied slot, by detection stage",
		}, []string{"stage"}),
		availabilitySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "availability",
			Name:      "resolve_seconds",
			Help:      "Latency of availability resolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.cancelledTotal, m.conflictsTotal, m.availabilitySeconds)
	return m
}

func (m *BookingMetrics) ObserveCreated(syncStatus string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(syncStatus).Inc()
}

func (m *BookingMetrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}

func (m *BookingMetrics) ObserveConflict(stage string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(stage).Inc()
}

func (m *BookingMetrics) ObserveAvailability(op string, seconds float64) {
	if m == nil {
		return
	}
	m.availabilitySeconds.WithLabelValues(op).Observe(seconds)
}
