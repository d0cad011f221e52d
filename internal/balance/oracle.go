// Package balance implements the process-wide BalanceOracle: a cache of
// per-address spendable balances fed by an authoritative blockchain-watch
// push (UpdateStates) and by speculative local adjustments (Subtract),
// serving point queries and full snapshots while collapsing redundant
// remote calls to at most one in-flight request per address.
//
// Grounded on the teacher's internal/state.PositionReducer (map[symbol]qty
// held behind an Apply/Snapshot cycle), generalized from a single
// in-memory reducer to one cache entry per address, each independently
// guarded and independently able to have an in-flight remote fetch.
package balance

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// cachedBalance is one address's cache entry. snapshot is true once the
// cache is known to be the complete set of assets the node reports a
// nonzero-or-known balance for (established by GetSnapshot or
// LoadSnapshot; UpdateStates never sets it); until
// then, a query for an asset not yet present in full always triggers a
// fresh remote fetch — see the cache-miss test scenario in spec.md §8.
type cachedBalance struct {
	mu       sync.Mutex
	full     map[domain.Asset]int64
	snapshot bool

	inflight     bool
	inflightWait []chan struct{}
}

// Oracle is the process-wide BalanceOracle.
type Oracle struct {
	node NodeClient

	mu    sync.Mutex
	cache map[domain.Address]*cachedBalance
}

// NodeClient is the subset of domain.NodeClient the oracle needs.
type NodeClient = domain.NodeClient

// New creates a BalanceOracle backed by the given on-chain node client.
func New(node NodeClient) *Oracle {
	return &Oracle{
		node:  node,
		cache: make(map[domain.Address]*cachedBalance),
	}
}

func (o *Oracle) entry(addr domain.Address) *cachedBalance {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.cache[addr]
	if !ok {
		e = &cachedBalance{}
		o.cache[addr] = e
	}
	return e
}

// Get returns the requested assets' balances for addr, defaulting missing
// keys to 0, issuing at most one remote call for any assets not already
// cached.
func (o *Oracle) Get(ctx context.Context, addr domain.Address, assets []domain.Asset) (map[domain.Asset]int64, error) {
	e := o.entry(addr)

	e.mu.Lock()
	if e.snapshot {
		out := e.readLocked(assets)
		e.mu.Unlock()
		return out, nil
	}
	missing := e.missingLocked(assets)
	if len(missing) == 0 {
		out := e.readLocked(assets)
		e.mu.Unlock()
		return out, nil
	}
	if e.inflight {
		wait := make(chan struct{})
		e.inflightWait = append(e.inflightWait, wait)
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return o.Get(ctx, addr, assets)
	}
	e.inflight = true
	e.mu.Unlock()

	fetched, err := o.node.SpendableBalance(ctx, addr, missing)

	e.mu.Lock()
	e.inflight = false
	waiters := e.inflightWait
	e.inflightWait = nil
	if err == nil {
		if e.full == nil {
			e.full = make(map[domain.Asset]int64, len(fetched))
		}
		for _, a := range missing {
			e.full[a] = fetched[a] // default 0 if absent from the reply
		}
	}
	out := e.readLocked(assets)
	e.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch spendable balance")
	}
	return out, nil
}

// GetSnapshot returns every asset the node reports for addr, fetching and
// caching a complete snapshot if one isn't already cached.
func (o *Oracle) GetSnapshot(ctx context.Context, addr domain.Address) (map[domain.Asset]int64, error) {
	e := o.entry(addr)

	e.mu.Lock()
	if e.snapshot {
		out := domain.CloneBalances(e.full)
		e.mu.Unlock()
		return out, nil
	}
	if e.inflight {
		wait := make(chan struct{})
		e.inflightWait = append(e.inflightWait, wait)
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return o.GetSnapshot(ctx, addr)
	}
	e.inflight = true
	e.mu.Unlock()

	fetched, err := o.node.SpendableBalanceSnapshot(ctx, addr)

	e.mu.Lock()
	e.inflight = false
	waiters := e.inflightWait
	e.inflightWait = nil
	if err == nil {
		e.full = domain.CloneBalances(fetched)
		e.snapshot = true
	}
	var out map[domain.Asset]int64
	if err == nil {
		out = domain.CloneBalances(e.full)
	}
	e.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch spendable balance snapshot")
	}
	return out, nil
}

// UpdateStates is the authoritative push from the blockchain watch stream.
// It merges the listed assets into every named address's cache; assets not
// mentioned are left untouched (a partial update).
func (o *Oracle) UpdateStates(changes map[domain.Address]map[domain.Asset]int64) {
	for addr, assets := range changes {
		e := o.entry(addr)
		e.mu.Lock()
		if e.full == nil {
			e.full = make(map[domain.Asset]int64, len(assets))
		}
		for a, v := range assets {
			e.full[a] = v
		}
		e.mu.Unlock()
	}
}

// Subtract applies a speculative local adjustment ahead of on-chain
// settlement. Per spec.md §9, this is an overlay superseded by the next
// UpdateStates, never treated as authoritative on its own.
func (o *Oracle) Subtract(addr domain.Address, delta map[domain.Asset]int64) {
	if len(delta) == 0 {
		return
	}
	e := o.entry(addr)
	e.mu.Lock()
	if e.full == nil {
		e.full = make(map[domain.Asset]int64, len(delta))
	}
	for a, v := range delta {
		e.full[a] -= v
	}
	e.mu.Unlock()
}

func (e *cachedBalance) missingLocked(assets []domain.Asset) []domain.Asset {
	if e.full == nil {
		return assets
	}
	var missing []domain.Asset
	for _, a := range assets {
		if _, ok := e.full[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

func (e *cachedBalance) readLocked(assets []domain.Asset) map[domain.Asset]int64 {
	out := make(map[domain.Asset]int64, len(assets))
	for _, a := range assets {
		out[a] = e.full[a] // zero value if absent, matching GetStateReply's default-0 contract
	}
	return out
}
