package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to EventStatus
		ok       bool
	}{
		{EventStatusDraft, EventStatusPublished, true},
		{EventStatusDraft, EventStatusCancelled, true},
		{EventStatusPublished, EventStatusDraft, true},
		{EventStatusPublished, EventStatusCancelled, true},
		{EventStatusCancelled, EventStatusPublished, false},
		{EventStatusCancelled, EventStatusDraft, false},
		{EventStatusDraft, EventStatusDraft, false},
		{EventStatusPublished, EventStatus("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestEventDerivedFields(t *testing.T) {
	e := &Event{TotalCapacity: 200, AvailableCapacity: 50, TicketPriceCents: 1500}
	assert.Equal(t, 150, e.BookedCount())
	assert.InDelta(t, 75.0, e.BookedPercentage(), 0.001)
	assert.Equal(t, 1500, e.UnitPriceCents())

	e.IsFree = true
	assert.Equal(t, 0, e.UnitPriceCents())

	empty := &Event{}
	assert.Equal(t, 0.0, empty.BookedPercentage())

	view := NewEventView(&Event{TotalCapacity: 10, AvailableCapacity: 0})
	assert.True(t, view.SoldOut)
	assert.Equal(t, 100.0, view.BookedPercentage)
}

func TestValidOrgRole(t *testing.T) {
	assert.True(t, ValidOrgRole("organizer"))
	assert.True(t, ValidOrgRole("member"))
	assert.False(t, ValidOrgRole("owner"))
}
