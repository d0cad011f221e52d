package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BitFinance-Co/dex/internal/account"
	"github.com/BitFinance-Co/dex/internal/balance"
	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
)

type fakeNodeClient struct{ balances map[domain.Asset]int64 }

func (n *fakeNodeClient) HasOrder(ctx context.Context, id domain.OrderID) (bool, error) {
	return false, nil
}

func (n *fakeNodeClient) SpendableBalance(ctx context.Context, addr domain.Address, assets []domain.Asset) (map[domain.Asset]int64, error) {
	out := make(map[domain.Asset]int64, len(assets))
	for _, a := range assets {
		out[a] = n.balances[a]
	}
	return out, nil
}

func (n *fakeNodeClient) SpendableBalanceSnapshot(ctx context.Context, addr domain.Address) (map[domain.Asset]int64, error) {
	return domain.CloneBalances(n.balances), nil
}

type fakeStoreSink struct{}

func (fakeStoreSink) Store(ctx context.Context, event domain.QueueEvent) domain.StoreOutcome {
	return domain.StoreOutcome{Kind: domain.StorePersisted}
}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	node := &fakeNodeClient{balances: map[domain.Asset]int64{domain.NativeAsset: 1_000_000}}
	oracle := balance.New(node)
	dir := New(context.Background(), oracle, node, fakeStoreSink{}, nil, account.DefaultConfig(), obs.NewMetrics())
	t.Cleanup(dir.Shutdown)
	return dir
}

func addr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	return a
}

func TestDispatchLazilySpawnsOneActorPerAddress(t *testing.T) {
	dir := newTestDirectory(t)

	a1 := dir.actorFor(addr(1))
	a2 := dir.actorFor(addr(1))
	require.Same(t, a1, a2, "the same address should always resolve to the same actor")

	a3 := dir.actorFor(addr(2))
	require.NotSame(t, a1, a3, "a different address should get its own actor")
}

func TestExistingActorDoesNotSpawn(t *testing.T) {
	dir := newTestDirectory(t)
	require.Nil(t, dir.existingActor(addr(9)), "an address never dispatched to should have no actor")

	dir.actorFor(addr(9))
	require.NotNil(t, dir.existingActor(addr(9)))
}

func TestSetAccountConfigAppliesOnlyToFutureSpawns(t *testing.T) {
	dir := newTestDirectory(t)
	before := dir.actorFor(addr(6))

	updated := account.DefaultConfig()
	updated.MaxActiveOrders = 7
	dir.SetAccountConfig(updated)

	after := dir.actorFor(addr(7))

	require.Equal(t, account.DefaultConfig().MaxActiveOrders, before.Config().MaxActiveOrders, "an already-spawned actor keeps the config it was spawned with")
	require.Equal(t, 7, after.Config().MaxActiveOrders, "an actor spawned after SetAccountConfig picks up the new value")
}

func TestNotifyBalanceChangesOnlyReachesSpawnedActors(t *testing.T) {
	dir := newTestDirectory(t)
	dir.actorFor(addr(3)) // spawn one actor

	// addr(4) was never dispatched to; the notification for it must be a
	// silent no-op rather than spawning a new actor just to tell it about a
	// balance it never asked to track.
	dir.NotifyBalanceChanges(map[domain.Address]map[domain.Asset]int64{
		addr(3): {domain.NativeAsset: 5},
		addr(4): {domain.NativeAsset: 5},
	})

	require.Eventually(t, func() bool {
		return dir.existingActor(addr(4)) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchRoutesCommandToActorsMailbox(t *testing.T) {
	dir := newTestDirectory(t)

	reply := make(chan map[domain.Asset]int64, 1)
	err := dir.Dispatch(context.Background(), addr(5), account.GetReservedBalance{Reply: reply})
	require.NoError(t, err)

	select {
	case got := <-reply:
		require.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for GetReservedBalance reply")
	}
}
