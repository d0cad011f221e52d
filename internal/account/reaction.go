package account

import (
	"context"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// handleOrderAdded implements spec.md §4.1's OrderAdded reaction: the
// matching engine has durably added (or re-added, after a fill) the order
// to the book.
func (a *Actor) handleOrderAdded(ctx context.Context, e domain.OrderAdded) {
	if e.Submitted.Sender != a.owner {
		return
	}
	ao := e.Submitted
	prev, hadPrev := a.activeOrders[ao.ID]

	delta := domain.CloneBalances(ao.ReservableBalance)
	if hadPrev {
		delta = domain.SubBalances(delta, prev.ReservableBalance)
	}
	a.openVolume = domain.AddBalances(a.openVolume, delta)
	a.assertNonNegativeVolume()

	a.activeOrders[ao.ID] = ao
	if a.db != nil {
		go func() { _ = a.db.SaveOrder(ctx, ao) }()
	}
	a.scheduleExpiry(ao)
	a.stageOrderUpdate(ao, firstSeen(e.Reason, hadPrev))

	if pc, ok := a.pendingCommands[ao.ID]; ok && pc.kind == pendingPlace {
		delete(a.pendingCommands, ao.ID)
		a.metrics.IncOrdersAccepted()
		pc.placeReply <- PlaceResult{Kind: OrderAccepted, Order: ao}
	}
}

func firstSeen(reason domain.AddedReason, hadPrev bool) bool {
	return reason == domain.AddedReasonNewOrder && !hadPrev
}

// handleOrderExecuted implements spec.md §4.1's OrderExecuted reaction:
// for each side owned by this account, fold the remaining state back in as
// either a re-Add (partial fill) or a terminal Fill.
func (a *Actor) handleOrderExecuted(ctx context.Context, e domain.OrderExecuted) {
	if e.Submitted.Sender == a.owner {
		a.handleExecuted(ctx, e.SubmittedRemaining)
	}
	if e.Counter.Sender == a.owner {
		a.handleExecuted(ctx, e.CounterRemaining)
	}
}

func (a *Actor) handleExecuted(ctx context.Context, remaining domain.AcceptedOrder) {
	// Speculative reserve subtraction: subscribers see the reserve drop
	// immediately, ahead of the next authoritative UpdateStates — spec.md
	// §9. The next UpdateStates push that names an asset overwrites that
	// asset's value.
	if prev, ok := a.activeOrders[remaining.ID]; ok {
		dropped := domain.SubBalances(domain.CloneBalances(prev.ReservableBalance), remaining.ReservableBalance)
		if len(dropped) > 0 {
			a.oracle.Subtract(a.owner, dropped)
		}
	}

	if remaining.IsValidRemainder() {
		a.handleOrderAdded(ctx, domain.OrderAdded{Submitted: remaining, Reason: domain.AddedReasonRequestExecuted})
		return
	}
	a.handleTerminated(ctx, remaining, domain.OrderStatus{Kind: domain.StatusFilled, Filling: remaining.Filling})
}

// handleOrderCanceled implements spec.md §4.1's OrderCanceled reaction.
func (a *Actor) handleOrderCanceled(ctx context.Context, e domain.OrderCanceled) {
	if e.Order.Sender != a.owner {
		return
	}
	ao := e.Order
	if pc, ok := a.pendingCommands[ao.ID]; ok {
		delete(a.pendingCommands, ao.ID)
		switch pc.kind {
		case pendingPlace:
			a.metrics.IncOrdersRejected()
			pc.placeReply <- PlaceResult{Kind: OrderRejected, Err: domain.NewMatcherError(domain.OrderCanceledErr, ao.ID)}
		case pendingCancel:
			a.metrics.IncOrdersCancelled()
			if pc.cancelReply != nil {
				pc.cancelReply <- CancelResult{Kind: OrderCanceledResult}
			}
		}
	}
	if _, active := a.activeOrders[ao.ID]; active {
		a.handleTerminated(ctx, ao, domain.OrderStatus{Kind: domain.StatusCancelled, Filling: ao.Filling})
	}
}

// handleTerminated implements spec.md §4.1's handleTerminated: persist,
// cancel the expiry timer, remove from activeOrders, release the reserve
// and stage a ws delta.
func (a *Actor) handleTerminated(ctx context.Context, ao domain.AcceptedOrder, status domain.OrderStatus) {
	if a.db != nil {
		go func() {
			_ = a.db.SaveOrder(ctx, ao)
			_ = a.db.SaveOrderInfo(ctx, ao.ID, a.owner, domain.OrderInfo{Status: status})
		}()
	}
	a.cancelExpiryTimer(ao.ID)
	delete(a.activeOrders, ao.ID)
	a.openVolume = domain.SubBalances(a.openVolume, ao.ReservableBalance)
	a.assertNonNegativeVolume()
	a.stageStatusUpdate(ao.ID, status)
}
