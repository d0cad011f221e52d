package account

import (
	"context"

	"github.com/bytedance/sonic"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// wsMutableState is the spec's WsMutableState: the staging area between
// websocket diff ticks. Subscribers are kept in two sets (pending = not
// yet sent an initial snapshot, active = already caught up) because a
// subscriber must receive exactly one snapshot before it can receive any
// diff, per spec.md §4.1.
type wsMutableState struct {
	pending map[domain.WsSubscriber]struct{}
	active  map[domain.WsSubscriber]struct{}

	changedAssets map[domain.Asset]struct{}
	orderUpdates  map[domain.OrderID]domain.WsOrderDelta
	trackedOrders map[domain.OrderID]struct{} // orders a subscriber has already seen in full
}

func newWsMutableState() wsMutableState {
	return wsMutableState{
		pending:       make(map[domain.WsSubscriber]struct{}),
		active:        make(map[domain.WsSubscriber]struct{}),
		changedAssets: make(map[domain.Asset]struct{}),
		orderUpdates:  make(map[domain.OrderID]domain.WsOrderDelta),
		trackedOrders: make(map[domain.OrderID]struct{}),
	}
}

// handleWsSubscribe implements spec.md §4.1's WsSubscribe notification:
// register the subscriber as pending and kick off an async snapshot
// request to the BalanceOracle.
func (a *Actor) handleWsSubscribe(ctx context.Context, m WsSubscribe) {
	a.ws.pending[m.Subscriber] = struct{}{}
	sub := m.Subscriber
	go func() {
		full, err := a.oracle.GetSnapshot(ctx, a.owner)
		a.selfSend(ctx, wsSnapshotReady{subscriber: sub, full: full, err: err})
	}()
}

// handleWsSnapshotReady folds the BalanceOracle's snapshot reply back in
// and emits the initial snapshot frame to every subscriber still pending
// (there may be several coalesced into one BalanceOracle round trip, since
// GetSnapshot itself coalesces concurrent callers).
func (a *Actor) handleWsSnapshotReady(m wsSnapshotReady) {
	if _, stillPending := a.ws.pending[m.subscriber]; !stillPending {
		return // subscriber disconnected before its snapshot arrived
	}
	if m.err != nil {
		return // leave it pending; a later snapshot reply for this account serves it
	}

	balances := make(map[domain.Asset]domain.WsBalanceEntry, len(m.full))
	for asset, spendable := range m.full {
		balances[asset] = domain.WsBalanceEntry{Tradable: spendable - a.openVolume[asset], Reserved: a.openVolume[asset]}
	}
	orders := make([]domain.AcceptedOrder, 0, len(a.activeOrders))
	for _, ao := range a.activeOrders {
		orders = append(orders, ao)
		a.ws.trackedOrders[ao.ID] = struct{}{}
	}
	frame := domain.WsSnapshot{Balances: balances, Orders: orders}

	for sub := range a.ws.pending {
		delete(a.ws.pending, sub)
		a.ws.active[sub] = struct{}{}
		a.pushFrame(sub, frame)
		a.metrics.IncWsSnapshotsSent()
	}
}

// stageOrderUpdate records an order mutation for the next diff tick,
// applying the decision table from spec.md §4.1: full info the first time
// an order is seen or when forceFull is set, delta-only otherwise.
func (a *Actor) stageOrderUpdate(ao domain.AcceptedOrder, forceFull bool) {
	if len(a.ws.active) == 0 && len(a.ws.pending) == 0 {
		return
	}
	_, seen := a.ws.trackedOrders[ao.ID]
	full := forceFull || !seen
	a.ws.trackedOrders[ao.ID] = struct{}{}

	delta := domain.WsOrderDelta{OrderID: ao.ID, FullInfo: full}
	if full {
		o := ao
		delta.Order = &o
	} else {
		delta.Status = domain.OrderStatus{Kind: domain.StatusPartiallyFilled, Filling: ao.Filling}
	}
	a.ws.orderUpdates[ao.ID] = delta
	a.stageReserveChange(ao.ReservableBalance)
}

// stageStatusUpdate records a terminal transition (Cancelled or Filled
// with no remainder) for the next diff tick — always delta-only per the
// decision table, except a first-time Filled the subscriber never saw
// Accepted for, which still needs full info.
func (a *Actor) stageStatusUpdate(id domain.OrderID, status domain.OrderStatus) {
	if len(a.ws.active) == 0 && len(a.ws.pending) == 0 {
		return
	}
	_, seen := a.ws.trackedOrders[id]
	delta := domain.WsOrderDelta{OrderID: id, Status: status}
	if status.Kind == domain.StatusFilled && !seen {
		delta.FullInfo = true
	}
	a.ws.orderUpdates[id] = delta
	a.ws.trackedOrders[id] = struct{}{}
}

func (a *Actor) stageReserveChange(reservable map[domain.Asset]int64) {
	for asset := range reservable {
		a.ws.changedAssets[asset] = struct{}{}
	}
}

// handleWsDiffTick implements spec.md §4.1's PrepareDiffForWsSubscribers:
// skip entirely if there are no active subscribers; skip emission (but
// keep ticking) if nothing changed; otherwise fetch just the changed
// assets and push a diff.
func (a *Actor) handleWsDiffTick(ctx context.Context) {
	if len(a.ws.active) == 0 {
		return
	}
	if len(a.ws.changedAssets) == 0 && len(a.ws.orderUpdates) == 0 {
		return
	}

	assets := make([]domain.Asset, 0, len(a.ws.changedAssets))
	for asset := range a.ws.changedAssets {
		assets = append(assets, asset)
	}
	spendable, err := a.oracle.Get(ctx, a.owner, assets)
	if err != nil {
		return // retry on the next tick
	}

	balances := make(map[domain.Asset]domain.WsBalanceEntry, len(assets))
	for _, asset := range assets {
		balances[asset] = domain.WsBalanceEntry{Tradable: spendable[asset] - a.openVolume[asset], Reserved: a.openVolume[asset]}
	}
	orders := make([]domain.WsOrderDelta, 0, len(a.ws.orderUpdates))
	for _, d := range a.ws.orderUpdates {
		orders = append(orders, d)
	}
	frame := domain.WsDiff{Balances: balances, Orders: orders}

	for sub := range a.ws.active {
		a.pushFrame(sub, frame)
	}
	a.metrics.IncWsDiffsSent()

	a.ws.changedAssets = make(map[domain.Asset]struct{})
	a.ws.orderUpdates = make(map[domain.OrderID]domain.WsOrderDelta)
}

// pushFrame encodes frame with sonic (the teacher's fast-JSON library) and
// delivers it to sub, dropping sub from both subscriber sets if it has
// disconnected or its outbound mailbox is full — spec.md §5's death-watch
// rule for ws subscribers.
func (a *Actor) pushFrame(sub domain.WsSubscriber, frame any) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case <-sub.Done():
		a.dropSubscriber(sub)
		return
	default:
	}
	if !sub.Send(data) {
		a.dropSubscriber(sub)
	}
}

func (a *Actor) dropSubscriber(sub domain.WsSubscriber) {
	delete(a.ws.pending, sub)
	delete(a.ws.active, sub)
}
