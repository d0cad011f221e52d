package domain

// WsBalanceEntry is one asset's tradable/reserved pair as pushed to
// websocket subscribers.
type WsBalanceEntry struct {
	Tradable int64 `json:"tradable"`
	Reserved int64 `json:"reserved"`
}

// WsOrderDelta is one order's contribution to a diff frame. FullInfo
// distinguishes the first time a subscriber needs to learn an order's full
// shape (Order is set) from a subsequent update where only the filling
// progress or terminal status changed, per the decision table in
// spec.md §4.1.
type WsOrderDelta struct {
	OrderID  OrderID
	FullInfo bool
	Order    *AcceptedOrder
	Status   OrderStatus
}

// WsSnapshot is the one-time initial frame a subscriber receives on
// WsSubscribe: full balances and every active order.
type WsSnapshot struct {
	Balances map[Asset]WsBalanceEntry
	Orders   []AcceptedOrder
}

// WsDiff is a periodic incremental frame: only the assets and orders that
// changed since the previous tick.
type WsDiff struct {
	Balances map[Asset]WsBalanceEntry
	Orders   []WsOrderDelta
}
