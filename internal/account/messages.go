package account

import (
	"time"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// Message is the sum type carried by an actor's mailbox: client commands
// and queries, matching-engine events, and the self-sent follow-ups that
// fold suspended computations (validation, store acks, balance replies)
// back into the single-threaded message loop. Grounded on the teacher's
// internal/order.Command shape, generalized from one venue-order command
// set to the full placement/cancel/query/event surface this actor owns.
type Message interface {
	isAccountMessage()
}

// --- client commands -------------------------------------------------

// PlaceOrder enqueues a placement. Reply carries exactly one of
// OrderAccepted / OrderRejected / WavesNodeUnavailable / CanNotPersist.
type PlaceOrder struct {
	Order    domain.Order
	IsMarket bool
	Reply    chan PlaceResult
}

func (PlaceOrder) isAccountMessage() {}

// PlaceResultKind discriminates a placement's terminal outcome.
type PlaceResultKind uint8

const (
	OrderAccepted PlaceResultKind = iota
	OrderRejected
	WavesNodeUnavailable
	CanNotPersist
)

// PlaceResult is the reply delivered to a PlaceOrder caller.
type PlaceResult struct {
	Kind  PlaceResultKind
	Order domain.AcceptedOrder // set when Kind == OrderAccepted
	Err   *domain.MatcherError
}

// CancelOrder requests cancellation of an active order.
type CancelOrder struct {
	ID    domain.OrderID
	Reply chan CancelResult
}

func (CancelOrder) isAccountMessage() {}

// CancelResultKind discriminates a cancellation's terminal outcome.
type CancelResultKind uint8

const (
	OrderCanceledResult CancelResultKind = iota
	OrderCancelRejected
)

// CancelResult is the reply delivered to a CancelOrder caller.
type CancelResult struct {
	Kind CancelResultKind
	Err  *domain.MatcherError
}

// CancelAllOrders requests a batch cancel, optionally restricted to pair.
type CancelAllOrders struct {
	Pair  *domain.AssetPair
	Reply chan BatchCancelResult
}

func (CancelAllOrders) isAccountMessage() {}

// BatchCancelResult maps each order considered to whether it was cancelled.
type BatchCancelResult struct {
	Cancelled map[domain.OrderID]bool
}

// CancelNotEnoughCoinsOrders forces cancellation of the minimal subset of
// active orders no longer covered by newBalance.
type CancelNotEnoughCoinsOrders struct {
	NewBalance map[domain.Asset]int64
}

func (CancelNotEnoughCoinsOrders) isAccountMessage() {}

// --- queries -----------------------------------------------------------

// GetReservedBalance replies with the current openVolume.
type GetReservedBalance struct {
	Reply chan map[domain.Asset]int64
}

func (GetReservedBalance) isAccountMessage() {}

// GetTradableBalance replies with spendable − reserved for the given
// assets, defaulting missing keys to 0.
type GetTradableBalance struct {
	Assets []domain.Asset
	Reply  chan TradableBalanceResult
}

func (GetTradableBalance) isAccountMessage() {}

// TradableBalanceResult is GetTradableBalance's reply.
type TradableBalanceResult struct {
	Balances map[domain.Asset]int64
	Err      error
}

// GetOrderStatus replies with the order's active or persisted status.
type GetOrderStatus struct {
	ID    domain.OrderID
	Reply chan domain.OrderStatus
}

func (GetOrderStatus) isAccountMessage() {}

// GetOrdersStatuses replies with active orders, optionally merged with
// historic orders loaded from OrderDB.
type GetOrdersStatuses struct {
	Pair       *domain.AssetPair
	OnlyActive bool
	Reply      chan []domain.OrderRecord
}

func (GetOrdersStatuses) isAccountMessage() {}

// WsSubscribe registers a subscriber for the balance/order diff stream.
type WsSubscribe struct {
	Subscriber domain.WsSubscriber
}

func (WsSubscribe) isAccountMessage() {}

// --- matching-engine events ---------------------------------------------

type orderAddedMsg struct{ event domain.OrderAdded }

func (orderAddedMsg) isAccountMessage() {}

type orderExecutedMsg struct{ event domain.OrderExecuted }

func (orderExecutedMsg) isAccountMessage() {}

type orderCanceledMsg struct{ event domain.OrderCanceled }

func (orderCanceledMsg) isAccountMessage() {}

// OrderAddedEvent, OrderExecutedEvent and OrderCanceledEvent are the
// exported constructors the Directory uses to forward matching-engine
// events into an actor's mailbox.
func OrderAddedEvent(e domain.OrderAdded) Message     { return orderAddedMsg{e} }
func OrderExecutedEvent(e domain.OrderExecuted) Message { return orderExecutedMsg{e} }
func OrderCanceledEvent(e domain.OrderCanceled) Message { return orderCanceledMsg{e} }

// --- self-sent follow-ups ----------------------------------------------

type validationPassed struct {
	id domain.OrderID
	ao domain.AcceptedOrder
}

func (validationPassed) isAccountMessage() {}

type validationFailed struct {
	id   domain.OrderID
	code domain.MatcherErrorCode
}

func (validationFailed) isAccountMessage() {}

type storeOutcomeMsg struct {
	id      domain.OrderID
	outcome domain.StoreOutcome
}

func (storeOutcomeMsg) isAccountMessage() {}

type expiryFired struct {
	id domain.OrderID
	at time.Time
}

func (expiryFired) isAccountMessage() {}

type wsSnapshotReady struct {
	subscriber domain.WsSubscriber
	full       map[domain.Asset]int64
	err        error
}

func (wsSnapshotReady) isAccountMessage() {}

type tradableBalanceReady struct {
	reply    chan TradableBalanceResult
	balances map[domain.Asset]int64
	assets   []domain.Asset
	err      error
}

func (tradableBalanceReady) isAccountMessage() {}

type wsDiffTick struct{}

func (wsDiffTick) isAccountMessage() {}

// StartSchedules turns on expiry scheduling for the account's current
// active orders. Broadcast once by the Directory after history replay.
type StartSchedules struct{}

func (StartSchedules) isAccountMessage() {}
