package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliashahi/secure-online-shop/internal/ledger"
)

type captureSink struct {
	mu   sync.Mutex
	envs []ledger.Envelope
}

func (c *captureSink) Emit(_ context.Context, env ledger.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
}

func (c *captureSink) all() []ledger.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ledger.Envelope, len(c.envs))
	copy(out, c.envs)
	return out
}

// Replaying the emitted event stream into a fresh ledger must reproduce
// products, orders, escrow and balances exactly.
func TestRestoreRebuildsState(t *testing.T) {
	sink := &captureSink{}
	src := ledger.New(ledger.Options{Service: "shop-test", Admins: []string{adminAccount}, Sink: sink})
	ctx := context.Background()

	laptop, err := src.RegisterProduct(ctx, "0xseller", "Laptop", "Gaming laptop", 100, 10)
	require.NoError(t, err)
	tablet, err := src.RegisterProduct(ctx, "0xseller", "Tablet", "10-inch tablet", 30, 8)
	require.NoError(t, err)

	// delivered order
	o1, err := src.Purchase(ctx, "0xalice", laptop.ID, 2, 200)
	require.NoError(t, err)
	_, err = src.MarkShipped(ctx, "0xseller", o1.ID)
	require.NoError(t, err)
	_, err = src.MarkDelivered(ctx, "0xseller", o1.ID)
	require.NoError(t, err)

	// canceled order
	o2, err := src.Purchase(ctx, "0xbob", tablet.ID, 1, 30)
	require.NoError(t, err)
	_, err = src.CancelOrder(ctx, "0xbob", o2.ID)
	require.NoError(t, err)

	// disputed order refunded by the admin
	o3, err := src.Purchase(ctx, "0xalice", tablet.ID, 2, 60)
	require.NoError(t, err)
	_, err = src.OpenDispute(ctx, "0xalice", o3.ID)
	require.NoError(t, err)
	_, err = src.ResolveDispute(ctx, adminAccount, o3.ID, ledger.ResolutionRefund)
	require.NoError(t, err)

	// order still in custody, product delisted afterwards
	o4, err := src.Purchase(ctx, "0xcarol", laptop.ID, 1, 100)
	require.NoError(t, err)
	_, err = src.SetProductActive(ctx, "0xseller", laptop.ID, false)
	require.NoError(t, err)

	restored := ledger.New(ledger.Options{Service: "shop-test", Admins: []string{adminAccount}})
	for _, env := range sink.all() {
		require.NoError(t, restored.Restore(env))
	}

	for _, id := range []uint64{laptop.ID, tablet.ID} {
		want, err := src.GetProduct(id)
		require.NoError(t, err)
		got, err := restored.GetProduct(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, id := range []uint64{o1.ID, o2.ID, o3.ID, o4.ID} {
		want, err := src.GetOrder(id)
		require.NoError(t, err)
		got, err := restored.GetOrder(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, acct := range []string{"0xseller", "0xalice", "0xbob", "0xcarol"} {
		assert.Equal(t, src.Balance(acct), restored.Balance(acct), acct)
	}
	assert.Equal(t, src.EscrowedTotal(), restored.EscrowedTotal())
	assert.Equal(t, src.EscrowedAmount(o4.ID), restored.EscrowedAmount(o4.ID))

	// id counters continue past replayed ids
	next, err := restored.RegisterProduct(ctx, "0xseller", "Headphones", "Wireless headphones", 10, 15)
	require.NoError(t, err)
	assert.Equal(t, tablet.ID+1, next.ID)
}

func TestRestoreRejectsUnknownEvent(t *testing.T) {
	l := ledger.New(ledger.Options{Service: "shop-test"})
	err := l.Restore(ledger.Envelope{EventType: "Bogus", Payload: []byte(`{}`)})
	assert.Error(t, err)
}
