package domain

import "time"

// Side is the order direction.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Amount is a scaled integer, following the teacher's schema.Price /
// schema.Quantity idiom: arithmetic stays on plain int64 internally.
type Amount int64

// Order is the signed placement directive a client submits.
type Order struct {
	ID         OrderID
	Sender     Address
	Pair       AssetPair
	Side       Side
	Price      Amount
	Amount     Amount
	MatcherFee Amount
	FeeAsset   Asset
	Timestamp  time.Time
	Expiration time.Time
}

// Filling captures the fill progress of an accepted order.
type Filling struct {
	FilledAmount Amount
	FilledFee    Amount
}

// AcceptedOrder is an Order plus the state the matcher tracks while it is
// alive: fill progress, whether it is a market order, and the two derived
// balance maps the account actor reserves against.
//
// Invariant: keys(ReservableBalance) ⊆ keys(RequiredBalance); every value
// in both maps is non-negative. Callers that build these maps must run
// them through CleanBalances before storing them.
type AcceptedOrder struct {
	Order
	Filling
	IsMarket bool

	// ReservableBalance is the amount to subtract from tradable balance
	// while this order is alive.
	ReservableBalance map[Asset]int64
	// RequiredBalance is the amount still needed to execute the
	// remaining (unfilled) amount of the order.
	RequiredBalance map[Asset]int64
}

// RemainingAmount is the unfilled portion of the order.
func (ao AcceptedOrder) RemainingAmount() Amount {
	return ao.Amount - ao.FilledAmount
}

// IsValidRemainder reports whether the order still has a strictly
// positive amount left to fill — used by OrderExecuted handling to decide
// between treating the remainder as still-active or as terminally filled.
func (ao AcceptedOrder) IsValidRemainder() bool {
	return ao.RemainingAmount() > 0
}

// OrderStatusKind is the discriminant of the OrderStatus sum type.
type OrderStatusKind uint8

const (
	StatusNotFound OrderStatusKind = iota
	StatusAccepted
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

// OrderStatus mirrors the spec's closed variant: NotFound/Accepted carry no
// extra data, PartiallyFilled/Filled/Cancelled carry the fill snapshot at
// the time of the transition.
type OrderStatus struct {
	Kind    OrderStatusKind
	Filling Filling
}

// IsTerminal reports whether this status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s.Kind == StatusFilled || s.Kind == StatusCancelled
}

// CleanBalances drops zero-valued entries from a balance map, implementing
// the "cleaning semigroup" spec.md §9 requires whenever reserved maps are
// combined, so changedAssets and key iteration stay bounded.
func CleanBalances(m map[Asset]int64) map[Asset]int64 {
	for k, v := range m {
		if v == 0 {
			delete(m, k)
		}
	}
	return m
}

// AddBalances returns dst with src added pointwise, in place, cleaned.
func AddBalances(dst map[Asset]int64, src map[Asset]int64) map[Asset]int64 {
	if dst == nil {
		dst = make(map[Asset]int64, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return CleanBalances(dst)
}

// SubBalances returns dst with src subtracted pointwise, in place, cleaned.
func SubBalances(dst map[Asset]int64, src map[Asset]int64) map[Asset]int64 {
	if dst == nil {
		dst = make(map[Asset]int64, len(src))
	}
	for k, v := range src {
		dst[k] -= v
	}
	return CleanBalances(dst)
}

// CloneBalances returns a defensive shallow copy.
func CloneBalances(m map[Asset]int64) map[Asset]int64 {
	out := make(map[Asset]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
