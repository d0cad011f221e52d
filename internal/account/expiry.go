package account

import (
	"context"
	"time"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// scheduleExpiry arms a one-shot timer for ao per spec.md §4.1, a no-op
// while scheduling is disabled (during startup history replay, per
// spec.md §4.3's StartSchedules gate) or for orders with no expiration.
func (a *Actor) scheduleExpiry(ao domain.AcceptedOrder) {
	if !a.schedulingEnabled || ao.Expiration.IsZero() {
		return
	}
	a.armTimer(ao.ID, ao.Expiration)
}

func (a *Actor) armTimer(id domain.OrderID, expiration time.Time) {
	if existing, ok := a.expiryTimers[id]; ok {
		existing.Stop()
	}
	delay := time.Until(expiration)
	if delay < 0 {
		delay = 0
	}
	a.expiryTimers[id] = time.AfterFunc(delay, func() {
		select {
		case a.timerFired <- expiryFired{id: id, at: time.Now()}:
		case <-a.stop:
		}
	})
}

// cancelExpiryTimer stops and removes id's timer, if any.
func (a *Actor) cancelExpiryTimer(id domain.OrderID) {
	if t, ok := a.expiryTimers[id]; ok {
		t.Stop()
		delete(a.expiryTimers, id)
	}
}

func (a *Actor) cancelAllTimers() {
	for id, t := range a.expiryTimers {
		t.Stop()
		delete(a.expiryTimers, id)
	}
}

// handleExpiryFired implements spec.md §4.1's CancelExpiredOrder firing
// logic: a firing for an order no longer active is ignored, and a timer
// firing early (clock drift) is rescheduled rather than treated as
// authoritative.
func (a *Actor) handleExpiryFired(ctx context.Context, m expiryFired) {
	delete(a.expiryTimers, m.id)

	ao, active := a.activeOrders[m.id]
	if !active {
		return
	}
	remaining := ao.Expiration.Sub(m.at)
	if remaining <= a.cfg.ExpirationThreshold {
		a.metrics.IncOrdersExpired()
		if _, pending := a.pendingCommands[m.id]; !pending {
			a.pendingCommands[m.id] = &pendingCommand{kind: pendingCancel, order: ao.Order}
		}
		a.emitCancel(ctx, ao)
		return
	}
	a.armTimer(m.id, ao.Expiration)
}

// handleStartSchedules implements spec.md §4.3's StartSchedules signal:
// turn on scheduling and arm timers for every currently active order.
func (a *Actor) handleStartSchedules(ctx context.Context) {
	a.schedulingEnabled = true
	for id, ao := range a.activeOrders {
		if !ao.Expiration.IsZero() {
			if _, ok := a.expiryTimers[id]; !ok {
				a.armTimer(id, ao.Expiration)
			}
		}
	}
}
