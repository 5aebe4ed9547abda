package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketTransitions(t *testing.T) {
	allStatuses := []TicketStatus{
		StatusChatting, StatusPending, StatusHandling,
		StatusResolved, StatusClosed, StatusReviewed,
	}

	legal := map[TicketStatus][]TicketStatus{
		StatusChatting: {StatusPending, StatusResolved},
		StatusPending:  {StatusHandling},
		StatusHandling: {StatusClosed},
		StatusClosed:   {StatusReviewed},
		StatusResolved: {},
		StatusReviewed: {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTicketStatusAllowsMessage(t *testing.T) {
	assert.True(t, StatusChatting.AllowsMessage())
	assert.True(t, StatusHandling.AllowsMessage())

	for _, s := range []TicketStatus{StatusPending, StatusResolved, StatusClosed, StatusReviewed} {
		assert.False(t, s.AllowsMessage(), "status %s", s)
	}
}
