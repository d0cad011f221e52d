package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BitFinance-Co/dex/internal/balance"
	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
)

// fakeNodeClient is a deterministic stand-in for the on-chain node client,
// grounded on the same fake-collaborator idiom as
// internal/balance/oracle_test.go's countingNode.
type fakeNodeClient struct {
	mu       sync.Mutex
	balances map[domain.Asset]int64
	known    map[domain.OrderID]bool
}

func newFakeNodeClient(balances map[domain.Asset]int64) *fakeNodeClient {
	return &fakeNodeClient{balances: balances, known: make(map[domain.OrderID]bool)}
}

func (n *fakeNodeClient) HasOrder(ctx context.Context, id domain.OrderID) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.known[id], nil
}

func (n *fakeNodeClient) SpendableBalance(ctx context.Context, addr domain.Address, assets []domain.Asset) (map[domain.Asset]int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[domain.Asset]int64, len(assets))
	for _, a := range assets {
		out[a] = n.balances[a]
	}
	return out, nil
}

func (n *fakeNodeClient) SpendableBalanceSnapshot(ctx context.Context, addr domain.Address) (map[domain.Asset]int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return domain.CloneBalances(n.balances), nil
}

// fakeStoreSink always reports persisted, the no-feature-flags-off path.
type fakeStoreSink struct {
	mu     sync.Mutex
	events []domain.QueueEvent
}

func (s *fakeStoreSink) Store(ctx context.Context, event domain.QueueEvent) domain.StoreOutcome {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return domain.StoreOutcome{Kind: domain.StorePersisted}
}

var (
	testWaves = domain.NativeAsset
	testUSD   = domain.IssuedAsset([32]byte{1})
)

func testOwner() domain.Address {
	var a domain.Address
	a[0] = 0xaa
	return a
}

func newTestActor(t *testing.T, node domain.NodeClient, store domain.StoreSink) (*Actor, context.Context) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MailboxCapacity = 32
	oracle := balance.New(node)
	a := New(testOwner(), oracle, node, store, nil, cfg, obs.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)
	return a, ctx
}

// placeAndConfirm sends order through the full placement pipeline: it waits
// for validation+place to land the order in activeOrders (visible via
// GetOrdersStatuses), then simulates the matching engine's OrderAdded ack —
// the only thing that actually resolves a PlaceOrder's reply channel, per
// handleOrderAdded — and returns the accepted order.
func placeAndConfirm(t *testing.T, a *Actor, order domain.Order) domain.AcceptedOrder {
	t.Helper()
	ctx := context.Background()

	reply := make(chan PlaceResult, 1)
	require.NoError(t, a.Send(ctx, PlaceOrder{Order: order, Reply: reply}))

	var accepted domain.AcceptedOrder
	require.Eventually(t, func() bool {
		recReply := make(chan []domain.OrderRecord, 1)
		if err := a.Send(ctx, GetOrdersStatuses{OnlyActive: true, Reply: recReply}); err != nil {
			return false
		}
		for _, rec := range <-recReply {
			if rec.Order.ID == order.ID {
				accepted = rec.Order
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "order %s never reached activeOrders", order.ID)

	require.NoError(t, a.Send(ctx, OrderAddedEvent(domain.OrderAdded{Submitted: accepted, Reason: domain.AddedReasonNewOrder})))

	select {
	case result := <-reply:
		require.Equal(t, OrderAccepted, result.Kind, "expected placement to be accepted, got err=%v", result.Err)
		return result.Order
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for placement reply after OrderAdded ack")
		panic("unreachable")
	}
}

// TestPlaceLimitBuyReservesPriceTimesAmount reproduces spec.md §8
// Scenario 1: a limit buy of 1 WAVES at 300 USD must reserve USD:300 (the
// price/amount asset) plus the fee, not the order's face-value amount.
func TestPlaceLimitBuyReservesPriceTimesAmount(t *testing.T) {
	node := newFakeNodeClient(map[domain.Asset]int64{testUSD: 10_000, testWaves: 10_000})
	store := &fakeStoreSink{}
	a, _ := newTestActor(t, node, store)

	order := domain.Order{
		ID:         orderID(1),
		Sender:     a.Owner(),
		Pair:       domain.AssetPair{AmountAsset: testWaves, PriceAsset: testUSD},
		Side:       domain.Buy,
		Price:      300,
		Amount:     1,
		MatcherFee: 1,
		FeeAsset:   testWaves,
		Timestamp:  time.Now(),
	}

	placeAndConfirm(t, a, order)

	reservedReply := make(chan map[domain.Asset]int64, 1)
	require.NoError(t, a.Send(context.Background(), GetReservedBalance{Reply: reservedReply}))
	reserved := <-reservedReply

	require.Equal(t, int64(300), reserved[testUSD], "expected USD:300 reserved, got %+v", reserved)
	require.Equal(t, int64(1), reserved[testWaves], "expected WAVES:matcherFee (1) reserved, got %+v", reserved)
}

// TestPlaceDuplicateOrderRejected covers the synchronous duplicate check
// in handlePlaceOrder: a second PlaceOrder for an id already pending is
// rejected without ever reaching validation.
func TestPlaceDuplicateOrderRejected(t *testing.T) {
	node := newFakeNodeClient(map[domain.Asset]int64{testUSD: 10_000})
	store := &fakeStoreSink{}
	a, _ := newTestActor(t, node, store)

	order := domain.Order{
		ID:       orderID(2),
		Sender:   a.Owner(),
		Pair:     domain.AssetPair{AmountAsset: testWaves, PriceAsset: testUSD},
		Side:     domain.Buy,
		Price:    10,
		Amount:   1,
		FeeAsset: testWaves,
	}

	reply1 := make(chan PlaceResult, 1)
	require.NoError(t, a.Send(context.Background(), PlaceOrder{Order: order, Reply: reply1}))

	reply2 := make(chan PlaceResult, 1)
	require.NoError(t, a.Send(context.Background(), PlaceOrder{Order: order, Reply: reply2}))

	var result2 PlaceResult
	select {
	case result2 = <-reply2:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for duplicate rejection")
	}
	require.Equal(t, OrderRejected, result2.Kind)
	require.Equal(t, domain.OrderDuplicate, result2.Err.Code)

	// The first order's placement is still in flight awaiting an OrderAdded
	// ack from the matching engine (out of scope for this test); reply1 is
	// deliberately left unresolved — it is buffered, so nothing leaks.
	_ = reply1
}

// TestPlaceQueuesBehindInFlightValidation covers spec.md §9's placement
// queue invariant: a second PlaceOrder arriving while the first is still
// validating is queued, not validated concurrently.
func TestPlaceQueuesBehindInFlightValidation(t *testing.T) {
	node := newFakeNodeClient(map[domain.Asset]int64{testUSD: 10_000, testWaves: 10_000})
	store := &fakeStoreSink{}
	a, _ := newTestActor(t, node, store)

	pair := domain.AssetPair{AmountAsset: testWaves, PriceAsset: testUSD}
	order1 := domain.Order{ID: orderID(3), Sender: a.Owner(), Pair: pair, Side: domain.Buy, Price: 10, Amount: 1, FeeAsset: testWaves}
	order2 := domain.Order{ID: orderID(4), Sender: a.Owner(), Pair: pair, Side: domain.Buy, Price: 10, Amount: 1, FeeAsset: testWaves}

	ctx := context.Background()
	reply1 := make(chan PlaceResult, 1)
	reply2 := make(chan PlaceResult, 1)
	require.NoError(t, a.Send(ctx, PlaceOrder{Order: order1, Reply: reply1}))
	require.NoError(t, a.Send(ctx, PlaceOrder{Order: order2, Reply: reply2}))

	// Both queued placements must reach activeOrders (meaning each one's
	// validation ran) even though order2 was sent while order1 was in flight.
	var accepted1, accepted2 domain.AcceptedOrder
	require.Eventually(t, func() bool {
		recReply := make(chan []domain.OrderRecord, 1)
		require.NoError(t, a.Send(ctx, GetOrdersStatuses{OnlyActive: true, Reply: recReply}))
		for _, rec := range <-recReply {
			switch rec.Order.ID {
			case order1.ID:
				accepted1 = rec.Order
			case order2.ID:
				accepted2 = rec.Order
			}
		}
		return !accepted1.ID.IsZero() && !accepted2.ID.IsZero()
	}, 2*time.Second, 5*time.Millisecond, "both queued placements should eventually land in activeOrders")

	require.NoError(t, a.Send(ctx, OrderAddedEvent(domain.OrderAdded{Submitted: accepted1, Reason: domain.AddedReasonNewOrder})))
	require.NoError(t, a.Send(ctx, OrderAddedEvent(domain.OrderAdded{Submitted: accepted2, Reason: domain.AddedReasonNewOrder})))

	var r1, r2 PlaceResult
	select {
	case r1 = <-reply1:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first placement reply")
	}
	select {
	case r2 = <-reply2:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second placement reply")
	}
	require.Equal(t, OrderAccepted, r1.Kind)
	require.Equal(t, OrderAccepted, r2.Kind)
}

// TestCancelNotEnoughCoinsCancelsNewestFirst covers spec.md §4.1's forced
// cancellation fold: when a balance drop leaves two same-asset orders
// under-collateralized, the older order is preserved and the newer one is
// force-cancelled.
func TestCancelNotEnoughCoinsCancelsNewestFirst(t *testing.T) {
	node := newFakeNodeClient(map[domain.Asset]int64{testUSD: 10_000, testWaves: 10_000})
	store := &fakeStoreSink{}
	a, _ := newTestActor(t, node, store)

	pair := domain.AssetPair{AmountAsset: testWaves, PriceAsset: testUSD}
	older := domain.AcceptedOrder{
		Order: domain.Order{
			ID: orderID(5), Sender: a.Owner(), Pair: pair, Side: domain.Buy,
			Price: 100, Amount: 1, FeeAsset: testWaves, Timestamp: time.Now().Add(-time.Minute),
		},
		ReservableBalance: map[domain.Asset]int64{testUSD: 100},
		RequiredBalance:   map[domain.Asset]int64{testUSD: 100},
	}
	newer := domain.AcceptedOrder{
		Order: domain.Order{
			ID: orderID(6), Sender: a.Owner(), Pair: pair, Side: domain.Buy,
			Price: 100, Amount: 1, FeeAsset: testWaves, Timestamp: time.Now(),
		},
		ReservableBalance: map[domain.Asset]int64{testUSD: 100},
		RequiredBalance:   map[domain.Asset]int64{testUSD: 100},
	}

	require.NoError(t, a.Send(context.Background(), OrderAddedEvent(domain.OrderAdded{Submitted: older, Reason: domain.AddedReasonNewOrder})))
	require.NoError(t, a.Send(context.Background(), OrderAddedEvent(domain.OrderAdded{Submitted: newer, Reason: domain.AddedReasonNewOrder})))

	// Only 100 USD now available on-chain — not enough to cover both 100s.
	require.NoError(t, a.Send(context.Background(), CancelNotEnoughCoinsOrders{NewBalance: map[domain.Asset]int64{testUSD: 100}}))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		for _, e := range store.events {
			if e.Kind == domain.EventCanceled && e.OrderID == newer.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expected the newer (later-timestamped) order to be the one force-cancelled")

	store.mu.Lock()
	for _, e := range store.events {
		require.False(t, e.Kind == domain.EventCanceled && e.OrderID == older.ID, "the older order should have been preserved, not cancelled")
	}
	store.mu.Unlock()
}

func orderID(b byte) domain.OrderID {
	var id domain.OrderID
	id[0] = b
	return id
}
