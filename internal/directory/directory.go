// Package directory implements the Directory: the process-wide router
// that demultiplexes client commands, matching-engine events and balance
// change notifications to the right AccountActor, spawning one lazily on
// first contact.
//
// Grounded on the teacher's cmd/trader wiring (a single process-wide
// registry keyed by an identifier, handing work off to per-key worker
// goroutines) generalized from venue-order routing to per-address actor
// routing, and on internal/bus.Queue (kept, adapted into a generic
// mailbox in package bus) for the actor spawn-and-own idiom.
package directory

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"

	"github.com/BitFinance-Co/dex/internal/account"
	"github.com/BitFinance-Co/dex/internal/balance"
	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
)

// Directory routes work to lazily spawned per-address AccountActors.
type Directory struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	oracle  *balance.Oracle
	node    domain.NodeClient
	store   domain.StoreSink
	db      domain.OrderDB
	cfg     account.Config
	metrics *obs.Metrics

	mu     sync.Mutex
	actors map[domain.Address]*account.Actor
}

// New constructs a Directory. Call Shutdown to stop every spawned actor.
func New(ctx context.Context, oracle *balance.Oracle, node domain.NodeClient, store domain.StoreSink, db domain.OrderDB, cfg account.Config, metrics *obs.Metrics) *Directory {
	ctx, cancel := context.WithCancel(ctx)
	return &Directory{
		ctx:     ctx,
		cancel:  cancel,
		oracle:  oracle,
		node:    node,
		store:   store,
		db:      db,
		cfg:     cfg,
		metrics: metrics,
		actors:  make(map[domain.Address]*account.Actor),
	}
}

// Dispatch routes a client command/query to addr's actor, spawning one if
// this is the address's first contact with the process.
func (d *Directory) Dispatch(ctx context.Context, addr domain.Address, msg account.Message) error {
	return d.actorFor(addr).Send(ctx, msg)
}

// actorFor returns addr's actor, spawning and starting its Run loop on
// first contact. Per spec.md §4.3, this is the only path that creates new
// per-account state.
func (d *Directory) actorFor(addr domain.Address) *account.Actor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.actors[addr]; ok {
		return a
	}
	a := account.New(addr, d.oracle, d.node, d.store, d.db, d.cfg, d.metrics)
	d.actors[addr] = a
	d.metrics.IncActorsSpawned()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		a.Run(d.ctx)
	}()
	return a
}

// SetAccountConfig swaps the account.Config used for every actor spawned
// from this point on — a config-reload hook mirroring the teacher's
// runtimeConfig idiom in cmd/trader/main.go: already-running actors keep
// the settings captured at their own spawn time, only future spawns pick
// up the new values.
func (d *Directory) SetAccountConfig(cfg account.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// existingActor returns addr's actor without spawning one, or nil if the
// address has never been seen by this process.
func (d *Directory) existingActor(addr domain.Address) *account.Actor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actors[addr]
}

// RouteOrderAdded forwards a matching-engine OrderAdded event to its
// sender's actor.
func (d *Directory) RouteOrderAdded(e domain.OrderAdded) {
	a := d.actorFor(e.Submitted.Sender)
	if err := a.TrySend(account.OrderAddedEvent(e)); err != nil {
		logs.Errorf("directory: dropped OrderAdded for %s: %+v", e.Submitted.Sender, err)
	}
}

// RouteOrderExecuted forwards a matching-engine OrderExecuted event to
// both sides' actors (they may be the same actor, for a self-trade).
func (d *Directory) RouteOrderExecuted(e domain.OrderExecuted) {
	for _, addr := range []domain.Address{e.Submitted.Sender, e.Counter.Sender} {
		a := d.actorFor(addr)
		if err := a.TrySend(account.OrderExecutedEvent(e)); err != nil {
			logs.Errorf("directory: dropped OrderExecuted for %s: %+v", addr, err)
		}
	}
}

// RouteOrderCanceled forwards a matching-engine OrderCanceled event to its
// order's sender.
func (d *Directory) RouteOrderCanceled(e domain.OrderCanceled) {
	a := d.actorFor(e.Order.Sender)
	if err := a.TrySend(account.OrderCanceledEvent(e)); err != nil {
		logs.Errorf("directory: dropped OrderCanceled for %s: %+v", e.Order.Sender, err)
	}
}

// NotifyBalanceChanges fans a blockchain-watch balance push out to every
// affected address's actor, per spec.md §4.3 — only addresses with an
// already-spawned actor are notified; an address the process has never
// handled a command for has no reserve state to invalidate.
func (d *Directory) NotifyBalanceChanges(changes map[domain.Address]map[domain.Asset]int64) {
	d.oracle.UpdateStates(changes)
	for addr, newBalance := range changes {
		a := d.existingActor(addr)
		if a == nil {
			continue
		}
		if err := a.TrySend(account.CancelNotEnoughCoinsOrders{NewBalance: newBalance}); err != nil {
			logs.Errorf("directory: dropped balance change notification for %s: %+v", addr, err)
		}
	}
}

// StartSchedules broadcasts the expiry-scheduling gate to every
// already-spawned actor, per spec.md §4.3: called once, after startup
// history replay completes, to avoid a thundering herd of immediate
// expiry firings while order books are still being restored.
func (d *Directory) StartSchedules(ctx context.Context) {
	d.mu.Lock()
	actors := make([]*account.Actor, 0, len(d.actors))
	for _, a := range d.actors {
		actors = append(actors, a)
	}
	d.mu.Unlock()

	for _, a := range actors {
		if err := a.Send(ctx, account.StartSchedules{}); err != nil {
			logs.Errorf("directory: failed to start schedules for %s: %+v", a.Owner(), err)
		}
	}
}

// Shutdown cancels every spawned actor's Run loop and waits for them to
// exit, cancelling their timers per spec.md §5's resource-acquisition
// rule.
func (d *Directory) Shutdown() {
	d.cancel()
	d.wg.Wait()
}
