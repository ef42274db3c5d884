package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBooking(t *testing.T) {
	before := testutil.ToFloat64(bookingsTotal.WithLabelValues(OutcomeConfirmed))
	ticketsBefore := testutil.ToFloat64(ticketsBookedTotal)

	RecordBooking(OutcomeConfirmed, 3)
	RecordBooking(OutcomeSoldOut, 2)

	assert.Equal(t, before+1, testutil.ToFloat64(bookingsTotal.WithLabelValues(OutcomeConfirmed)))
	assert.Equal(t, ticketsBefore+3, testutil.ToFloat64(ticketsBookedTotal))
}

func TestRecordEmail(t *testing.T) {
	before := testutil.ToFloat64(emailsTotal.WithLabelValues("booking_confirmation", "failed"))
	RecordEmail("booking_confirmation", false)
	assert.Equal(t, before+1, testutil.ToFloat64(emailsTotal.WithLabelValues("booking_confirmation", "failed")))
}
