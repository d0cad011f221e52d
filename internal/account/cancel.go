package account

import (
	"context"
	"sort"
	"time"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// handleCancelOrder implements spec.md §4.1's cancellation rules.
func (a *Actor) handleCancelOrder(ctx context.Context, m CancelOrder) {
	if pc, ok := a.pendingCommands[m.ID]; ok {
		switch pc.kind {
		case pendingPlace:
			m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.OrderNotFound, m.ID)}
		case pendingCancel:
			m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.OrderCanceledErr, m.ID)}
		}
		return
	}

	if ao, ok := a.activeOrders[m.ID]; ok {
		if ao.IsMarket {
			m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.MarketOrderCancel, m.ID)}
			return
		}
		a.pendingCommands[m.ID] = &pendingCommand{
			kind:        pendingCancel,
			order:       ao.Order,
			submittedAt: time.Now(),
			cancelReply: m.Reply,
		}
		a.emitCancel(ctx, ao)
		return
	}

	status := a.loadPersistedStatus(ctx, m.ID)
	switch status.Kind {
	case domain.StatusCancelled:
		m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.OrderCanceledErr, m.ID)}
	case domain.StatusFilled:
		m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.OrderFull, m.ID)}
	default:
		m.Reply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherError(domain.OrderNotFound, m.ID)}
	}
}

// emitCancel publishes a Canceled queue event through the store sink,
// folding the outcome back via the same storeOutcomeMsg path placement
// uses, per spec.md §4.1's uniform store sink contract.
func (a *Actor) emitCancel(ctx context.Context, ao domain.AcceptedOrder) {
	event := domain.QueueEvent{Kind: domain.EventCanceled, Pair: ao.Pair, OrderID: ao.ID}
	go func() {
		outcome := a.store.Store(ctx, event)
		a.selfSend(ctx, storeOutcomeMsg{id: ao.ID, outcome: outcome})
	}()
}

func (a *Actor) loadPersistedStatus(ctx context.Context, id domain.OrderID) domain.OrderStatus {
	if a.db == nil {
		return domain.OrderStatus{Kind: domain.StatusNotFound}
	}
	status, err := a.db.Status(ctx, id)
	if err != nil {
		return domain.OrderStatus{Kind: domain.StatusNotFound}
	}
	return status
}

// handleCancelAllOrders delegates to a short-lived batch sub-actor with a
// timeout, per spec.md §4.1. The sub-actor is just a goroutine fanning out
// CancelOrder to this same actor's own mailbox loop and collecting replies
// — it never touches AccountState directly, preserving the single-writer
// invariant.
func (a *Actor) handleCancelAllOrders(ctx context.Context, m CancelAllOrders) {
	targets := make([]domain.OrderID, 0, len(a.activeOrders))
	for id, ao := range a.activeOrders {
		if m.Pair != nil && ao.Pair != *m.Pair {
			continue
		}
		targets = append(targets, id)
	}

	batchCtx, cancel := context.WithTimeout(ctx, a.cfg.BatchCancelTimeout)
	go func() {
		defer cancel()
		result := BatchCancelResult{Cancelled: make(map[domain.OrderID]bool, len(targets))}
		replies := make(map[domain.OrderID]chan CancelResult, len(targets))
		for _, id := range targets {
			reply := make(chan CancelResult, 1)
			replies[id] = reply
			if err := a.Send(batchCtx, CancelOrder{ID: id, Reply: reply}); err != nil {
				result.Cancelled[id] = false
			}
		}
		for id, reply := range replies {
			select {
			case r := <-reply:
				result.Cancelled[id] = r.Kind == OrderCanceledResult
			case <-batchCtx.Done():
				result.Cancelled[id] = false
			}
		}
		m.Reply <- result
	}()
}

// toDeleteEntry records an order forced out by a balance drop.
type toDeleteEntry struct {
	order             domain.AcceptedOrder
	insufficientAsset domain.Asset
	insufficientAmount int64
}

// handleCancelNotEnoughCoinsOrders implements spec.md §4.1's forced
// cancellation fold: oldest obligations are honored first, so the
// newest/marginal reservations absorb the deficit and get cancelled.
func (a *Actor) handleCancelNotEnoughCoinsOrders(ctx context.Context, m CancelNotEnoughCoinsOrders) {
	ids := make([]domain.OrderID, 0, len(a.activeOrders))
	for id, ao := range a.activeOrders {
		if ao.IsMarket {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return a.activeOrders[ids[i]].Timestamp.Before(a.activeOrders[ids[j]].Timestamp)
	})

	restBalance := domain.CloneBalances(m.NewBalance)
	var toDelete []toDeleteEntry

	for _, id := range ids {
		ao := a.activeOrders[id]
		need := intersectBalances(ao.RequiredBalance, m.NewBalance)
		if len(need) == 0 {
			continue
		}
		trial := domain.CloneBalances(restBalance)
		deficitAsset := domain.Asset{}
		deficitAmount := int64(0)
		insufficient := false
		for asset, amt := range need {
			trial[asset] -= amt
			if trial[asset] < 0 && !insufficient {
				insufficient = true
				deficitAsset = asset
				deficitAmount = -trial[asset]
			}
		}
		if insufficient {
			if pc, ok := a.pendingCommands[id]; ok && pc.kind == pendingCancel {
				continue
			}
			toDelete = append(toDelete, toDeleteEntry{order: ao, insufficientAsset: deficitAsset, insufficientAmount: deficitAmount})
			continue
		}
		restBalance = domain.CleanBalances(trial)
	}

	for _, entry := range toDelete {
		a.metrics.IncForcedCancels()
		ao := entry.order
		a.pendingCommands[ao.ID] = &pendingCommand{kind: pendingCancel, order: ao.Order, submittedAt: time.Now()}
		a.emitCancel(ctx, ao)
	}
}

func intersectBalances(required, changed map[domain.Asset]int64) map[domain.Asset]int64 {
	out := make(map[domain.Asset]int64, len(required))
	for asset, amt := range required {
		if _, ok := changed[asset]; ok {
			out[asset] = amt
		}
	}
	return out
}
