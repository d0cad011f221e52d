package domain

import "context"

// NodeClient is the on-chain node client's interface as seen by the
// balance oracle and the account actor's placement validation. The node
// client itself is out of scope (spec.md §1); this is the seam a real
// implementation plugs into.
type NodeClient interface {
	// HasOrder reports whether an order id is already known on-chain,
	// used by placement validation's duplicate check.
	HasOrder(ctx context.Context, id OrderID) (bool, error)
	// SpendableBalance returns the subset of assets requested for addr.
	SpendableBalance(ctx context.Context, addr Address, assets []Asset) (map[Asset]int64, error)
	// SpendableBalanceSnapshot returns every asset the node currently
	// reports a non-default balance for.
	SpendableBalanceSnapshot(ctx context.Context, addr Address) (map[Asset]int64, error)
}

// QueueEventKind discriminates the three outbound store-sink events.
type QueueEventKind uint8

const (
	EventPlaced QueueEventKind = iota
	EventPlacedMarket
	EventCanceled
)

// QueueEvent is an outbound event published to the store sink before the
// matching engine executes the corresponding command.
type QueueEvent struct {
	Kind  QueueEventKind
	Order AcceptedOrder  // set for EventPlaced / EventPlacedMarket
	Pair  AssetPair      // set for EventCanceled
	OrderID OrderID      // set for EventCanceled
}

// StoreOutcomeKind is the three-way result of a store sink append.
type StoreOutcomeKind uint8

const (
	StorePersisted     StoreOutcomeKind = iota // Success(Some(_))
	StoreFeatureOff                            // Success(None)
	StoreFailed                                // Failure
)

// StoreOutcome is the store sink's reply, per spec.md §4.1's "store sink
// contract": persisted / disabled / transiently failed.
type StoreOutcome struct {
	Kind StoreOutcomeKind
	Err  error // set when Kind == StoreFailed
}

// StoreSink is the append-only log the account actor publishes
// Placed/PlacedMarket/Canceled events to before the matching engine acts
// on them.
type StoreSink interface {
	Store(ctx context.Context, event QueueEvent) StoreOutcome
}

// OrderRecord is a persisted order plus its terminal/active status, as
// returned by OrderDB.LoadRemainingOrders.
type OrderRecord struct {
	Order  AcceptedOrder
	Status OrderStatus
}

// OrderInfo is the fill/terminal-status snapshot persisted alongside an
// order once it leaves the active set.
type OrderInfo struct {
	Status  OrderStatus
	Updated int64 // unix nanos
}

// OrderDB is the simple key/value persistence layer for historic orders.
type OrderDB interface {
	SaveOrder(ctx context.Context, o AcceptedOrder) error
	SaveOrderInfo(ctx context.Context, id OrderID, owner Address, info OrderInfo) error
	Status(ctx context.Context, id OrderID) (OrderStatus, error)
	ContainsInfo(ctx context.Context, id OrderID) (bool, error)
	LoadRemainingOrders(ctx context.Context, owner Address, pair *AssetPair, knownActive map[OrderID]struct{}) ([]OrderRecord, error)
}

// WsSubscriber is a single websocket client's mailbox as seen by the
// account actor: a bounded channel of pre-encoded frames and a way to
// detect the subscriber has disconnected.
type WsSubscriber interface {
	Send(frame []byte) bool
	Done() <-chan struct{}
}
