package account

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// handlePlaceOrder implements spec.md §4.1's PlaceOrder reception rules:
// reject duplicates and queue-depth overflow synchronously, otherwise
// enqueue and kick off validation if this is the new queue head.
func (a *Actor) handlePlaceOrder(ctx context.Context, m PlaceOrder) {
	id := m.Order.ID
	a.metrics.IncOrdersPlaced()

	if _, dup := a.pendingCommands[id]; dup {
		m.Reply <- PlaceResult{Kind: OrderRejected, Err: domain.NewMatcherError(domain.OrderDuplicate, id)}
		a.metrics.IncOrdersRejected()
		return
	}
	if len(a.activeOrders)+len(a.placementQueue) >= a.cfg.MaxActiveOrders {
		m.Reply <- PlaceResult{Kind: OrderRejected, Err: domain.NewMatcherError(domain.ActiveOrdersLimitReached, id)}
		a.metrics.IncOrdersRejected()
		return
	}

	a.pendingCommands[id] = &pendingCommand{
		kind:        pendingPlace,
		order:       m.Order,
		isMarket:    m.IsMarket,
		submittedAt: time.Now(),
		placeReply:  m.Reply,
	}

	wasEmpty := len(a.placementQueue) == 0
	a.placementQueue = append(a.placementQueue, id)
	if wasEmpty {
		a.startValidation(ctx, id)
	}
}

// startValidation launches the suspended validation step for id (which
// must be the current queue head) in its own goroutine, gathering the two
// remote inputs concurrently and folding the result back via a self-sent
// validationPassed/validationFailed message — the "queued futures" pattern
// from spec.md §9.
func (a *Actor) startValidation(ctx context.Context, id domain.OrderID) {
	pc, ok := a.pendingCommands[id]
	if !ok {
		panic("account: placement queue head has no pending command")
	}
	a.validating = true
	order := pc.order
	isMarket := pc.isMarket
	reserved := a.openVolumeSnapshot()
	activeCount := a.activeOrderCountSnapshot()
	queued := a.queuedCountSnapshot()
	locallyActive := a.hasActiveOrLocally(id)

	go func() {
		type balResult struct {
			bal map[domain.Asset]int64
			err error
		}
		type existsResult struct {
			found bool
			err   error
		}

		balCh := make(chan balResult, 1)
		existsCh := make(chan existsResult, 1)

		spend := spendSide(order.Pair, order.Side)
		assets := []domain.Asset{spend, order.FeeAsset}

		go func() {
			askCtx, cancel := context.WithTimeout(ctx, oracleAskTimeout)
			defer cancel()
			bal, err := a.oracle.Get(askCtx, order.Sender, assets)
			balCh <- balResult{bal, err}
		}()
		go func() {
			found, err := a.node.HasOrder(ctx, id)
			existsCh <- existsResult{found, err}
		}()

		bal := <-balCh
		exists := <-existsCh

		if bal.err != nil {
			code := domain.UnexpectedError
			if isConnectionLost(bal.err) {
				code = domain.WavesNodeConnectionBroken
			}
			a.selfSend(ctx, validationFailed{id: id, code: code})
			return
		}
		if exists.err != nil {
			a.selfSend(ctx, validationFailed{id: id, code: domain.UnexpectedError})
			return
		}

		in := validationInput{
			order:            order,
			isMarket:         isMarket,
			tradable:         subtractReserved(bal.bal, reserved),
			activeOrderCount: activeCount,
			queuedCount:      queued,
			maxActiveOrders:  a.cfg.MaxActiveOrders,
			exists:           exists.found || locallyActive,
		}
		ao, code, passed := accountStateValidator(in)
		if !passed {
			a.selfSend(ctx, validationFailed{id: id, code: code})
			return
		}
		a.selfSend(ctx, validationPassed{id: id, ao: ao})
	}()
}

// isConnectionLost is a best-effort classifier; the node client interface
// doesn't carry a typed sentinel here since the node itself is out of
// scope (spec.md §1), so any error is treated as UnexpectedError except
// where the implementation marks itself explicitly.
func isConnectionLost(err error) bool {
	type connectionLost interface{ ConnectionLost() bool }
	if cl, ok := err.(connectionLost); ok {
		return cl.ConnectionLost()
	}
	return false
}

// subtractReserved subtracts reserved from spendable, restricted to the
// assets spendable already names — the caller only ever queries the spend
// and fee assets of the order under validation, so reserved's entries for
// every other open order's locked assets are irrelevant here.
func subtractReserved(spendable, reserved map[domain.Asset]int64) map[domain.Asset]int64 {
	out := domain.CloneBalances(spendable)
	for a := range out {
		out[a] -= reserved[a]
	}
	return domain.CleanBalances(out)
}

func (a *Actor) openVolumeSnapshot() map[domain.Asset]int64   { return domain.CloneBalances(a.openVolume) }
func (a *Actor) activeOrderCountSnapshot() int                { return len(a.activeOrders) }
func (a *Actor) queuedCountSnapshot() int                      { return len(a.placementQueue) }
func (a *Actor) hasActiveOrLocally(id domain.OrderID) bool {
	_, ok := a.activeOrders[id]
	return ok
}

// handleValidationPassed implements spec.md §4.1's ValidationPassed
// transition: a stale event (id not the head) is a placement-queue invariant
// violation and panics; otherwise place the order and advance the queue.
func (a *Actor) handleValidationPassed(ctx context.Context, m validationPassed) {
	if !a.isHead(m.id) {
		logs.Errorf("account %s: stale ValidationPassed for %s, queue head is %v", a.logTag, m.id, a.headID())
		panic("account: stale validation event reached handler — placement queue invariant violated")
	}
	a.place(ctx, m.ao)
	a.popHeadAndAdvance(ctx)
}

// handleValidationFailed implements spec.md §4.1's ValidationFailed
// transition.
func (a *Actor) handleValidationFailed(ctx context.Context, m validationFailed) {
	if !a.isHead(m.id) {
		panic("account: stale validation event reached handler — placement queue invariant violated")
	}
	pc := a.pendingCommands[m.id]
	delete(a.pendingCommands, m.id)
	a.metrics.IncValidationFailed()
	a.metrics.IncOrdersRejected()

	kind := OrderRejected
	if m.code == domain.WavesNodeConnectionBroken {
		kind = WavesNodeUnavailable
	}
	pc.placeReply <- PlaceResult{Kind: kind, Err: domain.NewMatcherError(m.code, m.id)}
	a.popHeadAndAdvance(ctx)
}

// place applies an accepted order's reserve to openVolume, inserts it into
// activeOrders provisionally (it becomes durable once OrderAdded arrives
// from the matching engine) and publishes the placement intent to the
// store sink.
func (a *Actor) place(ctx context.Context, ao domain.AcceptedOrder) {
	a.openVolume = domain.AddBalances(a.openVolume, ao.ReservableBalance)
	a.assertNonNegativeVolume()
	a.activeOrders[ao.ID] = ao

	kind := domain.EventPlaced
	if ao.IsMarket {
		kind = domain.EventPlacedMarket
	}
	event := domain.QueueEvent{Kind: kind, Order: ao}
	go func() {
		outcome := a.store.Store(ctx, event)
		a.selfSend(ctx, storeOutcomeMsg{id: ao.ID, outcome: outcome})
	}()
}

// handleStoreOutcome folds the store sink's three-outcome reply back in,
// per spec.md §4.1's store sink contract.
func (a *Actor) handleStoreOutcome(m storeOutcomeMsg) {
	pc, ok := a.pendingCommands[m.id]
	if !ok {
		return // command already resolved by a downstream matcher event
	}
	if m.outcome.Kind == domain.StorePersisted {
		return // pendingCommand clears when OrderAdded/OrderCanceled arrives
	}

	a.metrics.IncStoreFailures()
	code := domain.CanNotPersistEvent
	if m.outcome.Kind == domain.StoreFeatureOff {
		code = domain.FeatureDisabled
	}
	delete(a.pendingCommands, m.id)
	switch pc.kind {
	case pendingPlace:
		a.rollbackReserve(m.id)
		pc.placeReply <- PlaceResult{Kind: CanNotPersist, Err: domain.NewMatcherErrorDetail(code, storeErrDetail(m.outcome))}
	case pendingCancel:
		if pc.cancelReply != nil {
			pc.cancelReply <- CancelResult{Kind: OrderCancelRejected, Err: domain.NewMatcherErrorDetail(code, storeErrDetail(m.outcome))}
		}
	}
}

func storeErrDetail(o domain.StoreOutcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}

func (a *Actor) rollbackReserve(id domain.OrderID) {
	ao, ok := a.activeOrders[id]
	if !ok {
		return
	}
	delete(a.activeOrders, id)
	a.openVolume = domain.SubBalances(a.openVolume, ao.ReservableBalance)
	a.assertNonNegativeVolume()
}

func (a *Actor) isHead(id domain.OrderID) bool {
	return len(a.placementQueue) > 0 && a.placementQueue[0] == id
}

func (a *Actor) headID() *domain.OrderID {
	if len(a.placementQueue) == 0 {
		return nil
	}
	return &a.placementQueue[0]
}

func (a *Actor) popHeadAndAdvance(ctx context.Context) {
	a.placementQueue = a.placementQueue[1:]
	a.validating = false
	if len(a.placementQueue) > 0 {
		a.startValidation(ctx, a.placementQueue[0])
	}
}
