package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aliashahi/secure-online-shop/internal/ledger"
)

// The numeric values are the external contract; they must never move.
func TestStatusCodes(t *testing.T) {
	assert.EqualValues(t, 0, ledger.StatusCreated)
	assert.EqualValues(t, 1, ledger.StatusPaid)
	assert.EqualValues(t, 2, ledger.StatusShipped)
	assert.EqualValues(t, 3, ledger.StatusDelivered)
	assert.EqualValues(t, 4, ledger.StatusCanceled)
	assert.EqualValues(t, 5, ledger.StatusDisputed)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ledger.Status
		want     bool
	}{
		{ledger.StatusCreated, ledger.StatusPaid, true},
		{ledger.StatusPaid, ledger.StatusShipped, true},
		{ledger.StatusPaid, ledger.StatusCanceled, true},
		{ledger.StatusPaid, ledger.StatusDisputed, true},
		{ledger.StatusShipped, ledger.StatusDelivered, true},
		{ledger.StatusShipped, ledger.StatusDisputed, true},
		{ledger.StatusDisputed, ledger.StatusDelivered, true},
		{ledger.StatusDisputed, ledger.StatusCanceled, true},

		{ledger.StatusCreated, ledger.StatusShipped, false},
		{ledger.StatusPaid, ledger.StatusDelivered, false},
		{ledger.StatusShipped, ledger.StatusPaid, false},
		{ledger.StatusShipped, ledger.StatusCanceled, false},
		{ledger.StatusDisputed, ledger.StatusShipped, false},
		{ledger.StatusDelivered, ledger.StatusDisputed, false},
		{ledger.StatusDelivered, ledger.StatusCanceled, false},
		{ledger.StatusCanceled, ledger.StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []ledger.Status{ledger.StatusDelivered, ledger.StatusCanceled} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []ledger.Status{ledger.StatusCreated, ledger.StatusPaid, ledger.StatusShipped, ledger.StatusDisputed} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestParseResolution(t *testing.T) {
	out, err := ledger.ParseResolution("deliver")
	assert.NoError(t, err)
	assert.Equal(t, ledger.ResolutionDeliver, out)

	out, err = ledger.ParseResolution("Refund")
	assert.NoError(t, err)
	assert.Equal(t, ledger.ResolutionRefund, out)

	_, err = ledger.ParseResolution("split")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}
