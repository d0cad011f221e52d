package account

import (
	"context"
	"sort"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// handleGetTradableBalance implements spec.md §4.1's GetTradableBalance
// query and §5's suspension point (b): the BalanceOracle ask runs in its
// own goroutine, bounded by oracleAskTimeout, and folds its result back
// in via a self-sent tradableBalanceReady message — the actor keeps
// processing other messages for this account while the ask is in flight,
// matching the goroutine+self-send shape every other suspension point in
// this package uses (startValidation, emitCancel, handleWsSubscribe).
func (a *Actor) handleGetTradableBalance(ctx context.Context, m GetTradableBalance) {
	assets := m.Assets
	go func() {
		askCtx, cancel := context.WithTimeout(ctx, oracleAskTimeout)
		defer cancel()
		spendable, err := a.oracle.Get(askCtx, a.owner, assets)
		a.selfSend(ctx, tradableBalanceReady{reply: m.Reply, balances: spendable, assets: assets, err: err})
	}()
}

func (a *Actor) handleTradableBalanceReady(m tradableBalanceReady) {
	if m.err != nil {
		m.reply <- TradableBalanceResult{Err: m.err}
		return
	}
	out := make(map[domain.Asset]int64, len(m.assets))
	for _, asset := range m.assets {
		out[asset] = m.balances[asset] - a.openVolume[asset]
	}
	m.reply <- TradableBalanceResult{Balances: out}
}

// handleGetOrderStatus implements spec.md §4.1's GetOrderStatus query.
func (a *Actor) handleGetOrderStatus(ctx context.Context, id domain.OrderID) domain.OrderStatus {
	if ao, ok := a.activeOrders[id]; ok {
		kind := domain.StatusAccepted
		if ao.FilledAmount > 0 {
			kind = domain.StatusPartiallyFilled
		}
		return domain.OrderStatus{Kind: kind, Filling: ao.Filling}
	}
	return a.loadPersistedStatus(ctx, id)
}

// handleGetOrdersStatuses implements spec.md §4.1's GetOrdersStatuses
// query: active orders (sorted by timestamp), optionally merged with
// historic orders loaded from OrderDB.
func (a *Actor) handleGetOrdersStatuses(ctx context.Context, m GetOrdersStatuses) {
	knownActive := make(map[domain.OrderID]struct{}, len(a.activeOrders))
	records := make([]domain.OrderRecord, 0, len(a.activeOrders))
	for id, ao := range a.activeOrders {
		if m.Pair != nil && ao.Pair != *m.Pair {
			continue
		}
		knownActive[id] = struct{}{}
		kind := domain.StatusAccepted
		if ao.FilledAmount > 0 {
			kind = domain.StatusPartiallyFilled
		}
		records = append(records, domain.OrderRecord{Order: ao, Status: domain.OrderStatus{Kind: kind, Filling: ao.Filling}})
	}

	if !m.OnlyActive && a.db != nil {
		historic, err := a.db.LoadRemainingOrders(ctx, a.owner, m.Pair, knownActive)
		if err == nil {
			records = append(records, historic...)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Order.Timestamp.Before(records[j].Order.Timestamp)
	})
	m.Reply <- records
}
