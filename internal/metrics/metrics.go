package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes.
const (
	OutcomeConfirmed    = "confirmed"
	OutcomeNotFound     = "not_found"
	OutcomeNotOpen      = "not_published"
	OutcomeSoldOut      = "sold_out"
	OutcomeInsufficient = "insufficient_capacity"
	OutcomeDuplicate    = "duplicate"
	OutcomeError        = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	bookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasticket_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsBookedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fasticket_tickets_booked_total",
			Help: "Tickets sold by confirmed bookings",
		},
	)

	bookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fasticket_booking_cancellations_total",
			Help: "Bookings cancelled by attendees or organizers",
		},
	)

	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasticket_emails_total",
			Help: "Notification emails processed by result",
		},
		[]string{"type", "result"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasticket_websocket_clients",
			Help: "Connected live availability clients",
		},
	)
)

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordBooking counts a booking attempt; confirmed bookings also add their ticket quantity.
func RecordBooking(outcome string, quantity int) {
	bookingsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeConfirmed && quantity > 0 {
		ticketsBookedTotal.Add(float64(quantity))
	}
}

// RecordCancellation counts a cancelled booking.
func RecordCancellation() {
	bookingCancellationsTotal.Inc()
}

// RecordEmail counts a processed notification email.
func RecordEmail(emailType string, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	emailsTotal.WithLabelValues(emailType, result).Inc()
}

// WebsocketConnected adjusts the connected clients gauge by delta.
func WebsocketConnected(delta int) {
	websocketClients.Add(float64(delta))
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
