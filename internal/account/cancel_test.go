package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
)

// newIdleActor builds an Actor with its private state directly accessible,
// for exercising handler methods without running Run's message loop — the
// mailbox/timer machinery isn't the thing under test here.
func newIdleActor() *Actor {
	cfg := DefaultConfig()
	return New(testOwner(), nil, nil, &fakeStoreSink{}, nil, cfg, obs.NewMetrics())
}

func TestHandleCancelOrderRejectsMarketOrder(t *testing.T) {
	a := newIdleActor()
	id := orderID(7)
	a.activeOrders[id] = domain.AcceptedOrder{
		Order:    domain.Order{ID: id, Sender: a.owner},
		IsMarket: true,
	}

	reply := make(chan CancelResult, 1)
	a.handleCancelOrder(context.Background(), CancelOrder{ID: id, Reply: reply})

	result := <-reply
	require.Equal(t, OrderCancelRejected, result.Kind)
	require.Equal(t, domain.MarketOrderCancel, result.Err.Code)
}

func TestHandleCancelOrderUnknownIDRejectsNotFound(t *testing.T) {
	a := newIdleActor()
	reply := make(chan CancelResult, 1)
	a.handleCancelOrder(context.Background(), CancelOrder{ID: orderID(8), Reply: reply})

	result := <-reply
	require.Equal(t, OrderCancelRejected, result.Kind)
	require.Equal(t, domain.OrderNotFound, result.Err.Code)
}

func TestHandleCancelOrderAlreadyPendingCancelRejected(t *testing.T) {
	a := newIdleActor()
	id := orderID(9)
	a.pendingCommands[id] = &pendingCommand{kind: pendingCancel}

	reply := make(chan CancelResult, 1)
	a.handleCancelOrder(context.Background(), CancelOrder{ID: id, Reply: reply})

	result := <-reply
	require.Equal(t, OrderCancelRejected, result.Kind)
	require.Equal(t, domain.OrderCanceledErr, result.Err.Code)
}

func TestHandleCancelOrderEmitsCancelForActiveLimitOrder(t *testing.T) {
	a := newIdleActor()
	id := orderID(10)
	ao := domain.AcceptedOrder{Order: domain.Order{ID: id, Sender: a.owner}, IsMarket: false}
	a.activeOrders[id] = ao

	reply := make(chan CancelResult, 1)
	a.handleCancelOrder(context.Background(), CancelOrder{ID: id, Reply: reply})

	pc, ok := a.pendingCommands[id]
	require.True(t, ok, "expected a pendingCancel entry to be recorded")
	require.Equal(t, pendingCancel, pc.kind)

	store := a.store.(*fakeStoreSink)
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		for _, e := range store.events {
			if e.Kind == domain.EventCanceled && e.OrderID == id {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestIntersectBalancesOnlyKeepsChangedAssets(t *testing.T) {
	required := map[domain.Asset]int64{testUSD: 100, testWaves: 5}
	changed := map[domain.Asset]int64{testUSD: 50}
	got := intersectBalances(required, changed)
	require.Equal(t, map[domain.Asset]int64{testUSD: 100}, got)
}
