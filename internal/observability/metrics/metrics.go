package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking and payment flows.
type BookingMetrics struct {
	turnsTotal        *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	remindersTotal    prometheus.Counter
	nluFallbacksTotal prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightcare",
			Subsystem: "booking",
			Name:      "turns_total",
			Help:      "Conversation turns processed, by input kind and outcome",
		}, []string{"kind", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightcare",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointments created, by payment mode",
		}, []string{"mode"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightcare",
			Subsystem: "payments",
			Name:      "webhook_total",
			Help:      "Inbound payment webhooks, by event kind and outcome",
		}, []string{"event", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brightcare",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of payment webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		remindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brightcare",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Pre-visit reminders sent",
		}),
		nluFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brightcare",
			Subsystem: "nlu",
			Name:      "keyword_fallback_total",
			Help:      "Turns served by keyword fallback after NLU rate limiting",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal, m.webhookTotal, m.webhookLatency, m.remindersTotal, m.nluFallbacksTotal)
	return m
}

func (m *BookingMetrics) ObserveTurn(kind, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(kind, status).Inc()
}

func (m *BookingMetrics) ObserveBooking(mode string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(mode).Inc()
}

func (m *BookingMetrics) ObserveWebhook(event, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(event, status).Inc()
}

func (m *BookingMetrics) ObserveWebhookLatency(event string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(event).Observe(seconds)
}

func (m *BookingMetrics) ObserveReminderSent() {
	if m == nil {
		return
	}
	m.remindersTotal.Inc()
}

func (m *BookingMetrics) ObserveNLUFallback() {
	if m == nil {
		return
	}
	m.nluFallbacksTotal.Inc()
}
