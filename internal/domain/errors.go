package domain

import "fmt"

// MatcherErrorCode enumerates the deterministic error taxonomy surfaced to
// clients, grouped the way the teacher's pkg/exception grouped sentinel
// errors per domain file — here all variants belong to one closed sum type
// instead of loose package vars, since every one of them needs to carry an
// order id or asset to be useful to a client.
type MatcherErrorCode uint8

const (
	OrderDuplicate MatcherErrorCode = iota
	OrderNotFound
	OrderCanceledErr
	OrderFull
	ActiveOrdersLimitReached
	MarketOrderCancel
	WavesNodeConnectionBroken
	FeatureDisabled
	CanNotPersistEvent
	UnexpectedError
)

func (c MatcherErrorCode) String() string {
	switch c {
	case OrderDuplicate:
		return "OrderDuplicate"
	case OrderNotFound:
		return "OrderNotFound"
	case OrderCanceledErr:
		return "OrderCanceled"
	case OrderFull:
		return "OrderFull"
	case ActiveOrdersLimitReached:
		return "ActiveOrdersLimitReached"
	case MarketOrderCancel:
		return "MarketOrderCancel"
	case WavesNodeConnectionBroken:
		return "WavesNodeConnectionBroken"
	case FeatureDisabled:
		return "FeatureDisabled"
	case CanNotPersistEvent:
		return "CanNotPersistEvent"
	case UnexpectedError:
		return "UnexpectedError"
	default:
		return "Unknown"
	}
}

// MatcherError is the typed error returned to clients for placement and
// cancellation rejections. OrderID is the zero value when not applicable.
type MatcherError struct {
	Code    MatcherErrorCode
	OrderID OrderID
	Asset   Asset
	Detail  string
}

func (e *MatcherError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	if !e.OrderID.IsZero() {
		return fmt.Sprintf("%s: order %s", e.Code, e.OrderID)
	}
	return e.Code.String()
}

// NewMatcherError builds a MatcherError for the given order id.
func NewMatcherError(code MatcherErrorCode, id OrderID) *MatcherError {
	return &MatcherError{Code: code, OrderID: id}
}

// NewMatcherErrorDetail builds a MatcherError carrying a free-form detail
// string, used for UnexpectedError / store-failure reasons.
func NewMatcherErrorDetail(code MatcherErrorCode, detail string) *MatcherError {
	return &MatcherError{Code: code, Detail: detail}
}
