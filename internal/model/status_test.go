package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatusesAreNeverLeft(t *testing.T) {
	for from := range allowedTransitions {
		assert.False(t, from.Terminal(), "terminal status %s must not allow outgoing transitions", from)
	}
	for _, terminal := range []Status{StatusSuccess, StatusExpired, StatusRefunded} {
		for to := range allowedTransitions {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must be illegal", terminal, to)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusExpired, true},
		{StatusPendingPayment, StatusSuspicious, true},
		{StatusPaid, StatusQueued, true},
		{StatusPaid, StatusManualPending, true},
		{StatusQueued, StatusProcessing, true},
		{StatusProcessing, StatusSuccess, true},
		{StatusProcessing, StatusQueued, true},
		{StatusProcessing, StatusInvalidUID, true},
		{StatusInvalidUID, StatusPendingPayment, true},
		{StatusSuspicious, StatusPaid, true},
		{StatusDuplicatePayment, StatusRefunded, true},

		{StatusPendingPayment, StatusQueued, false},
		{StatusSuccess, StatusQueued, false},
		{StatusExpired, StatusPendingPayment, false},
		{StatusRefunded, StatusPaid, false},
		{StatusPaid, StatusPendingPayment, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, StatusPendingPayment.Valid())
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("unknown").Valid())
	assert.False(t, Status("").Valid())
}
