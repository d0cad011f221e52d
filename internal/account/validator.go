package account

import (
	"github.com/BitFinance-Co/dex/internal/domain"
)

// validationInput is everything accountStateValidator needs to decide an
// order's fate, gathered by startValidation before the head of the
// placement queue suspends. Kept as a plain struct so the validator stays
// pure and independently testable, per spec.md §4.1.
type validationInput struct {
	order            domain.Order
	isMarket         bool
	tradable         map[domain.Asset]int64 // default-0 already applied
	activeOrderCount int
	queuedCount      int
	maxActiveOrders  int
	exists           bool // duplicate per activeOrders ∪ OrderDB ∪ hasOrderInBlockchain
}

// spendSide returns the asset an order spends: a Sell locks up the amount
// asset it is selling; a Buy locks up the price asset it pays with.
func spendSide(pair domain.AssetPair, side domain.Side) domain.Asset {
	if side == domain.Sell {
		return pair.AmountAsset
	}
	return pair.PriceAsset
}

// spendQuantity is the trivial arithmetic spec.md §1 still requires of
// this component despite the Non-goal excluding anything beyond it: a
// Sell reserves the amount it is selling at face value; a Buy reserves
// price × amount of the price asset. Neither decimal scaling across
// asset precisions nor slippage/rounding policy is modeled here — both
// price and amount are already the scaled integers the caller supplied.
func spendQuantity(o domain.Order, remaining domain.Amount) int64 {
	if o.Side == domain.Sell {
		return int64(remaining)
	}
	return int64(o.Price) * int64(remaining)
}

// buildReserve computes the reservable/required balance maps for an order
// with the given remaining amount, per the AcceptedOrder invariant that
// reservableBalance's keys are a subset of requiredBalance's.
func buildReserve(o domain.Order, remaining domain.Amount) (reservable, required map[domain.Asset]int64) {
	spend := spendSide(o.Pair, o.Side)
	reservable = domain.AddBalances(nil, map[domain.Asset]int64{spend: spendQuantity(o, remaining)})
	reservable = domain.AddBalances(reservable, map[domain.Asset]int64{o.FeeAsset: int64(o.MatcherFee)})
	required = domain.CloneBalances(reservable)
	return reservable, required
}

// accountStateValidator is the pure decision function behind placement
// validation: given the gathered inputs, it either returns the
// AcceptedOrder to place or the MatcherErrorCode to reject with. Market
// orders are capped to what the account can actually spend; limit orders
// are accepted at face value (balance sufficiency beyond that is the
// matching engine's concern, out of scope here).
func accountStateValidator(in validationInput) (domain.AcceptedOrder, domain.MatcherErrorCode, bool) {
	if in.exists {
		return domain.AcceptedOrder{}, domain.OrderDuplicate, false
	}
	if in.activeOrderCount+in.queuedCount >= in.maxActiveOrders {
		return domain.AcceptedOrder{}, domain.ActiveOrdersLimitReached, false
	}

	amount := in.order.Amount
	if in.isMarket {
		spend := spendSide(in.order.Pair, in.order.Side)
		budget := in.tradable[spend]
		if in.order.FeeAsset == spend {
			budget -= int64(in.order.MatcherFee)
		}
		if budget < 0 {
			budget = 0
		}
		affordable := domain.Amount(budget)
		if in.order.Side == domain.Buy && in.order.Price > 0 {
			affordable = domain.Amount(budget / int64(in.order.Price))
		}
		if amount > affordable {
			amount = affordable
		}
	}

	reservable, required := buildReserve(in.order, amount)
	ao := domain.AcceptedOrder{
		Order:             in.order,
		IsMarket:          in.isMarket,
		ReservableBalance: reservable,
		RequiredBalance:   required,
	}
	ao.Amount = amount
	return ao, 0, true
}
