// Package orderdb implements domain.OrderDB on top of PostgreSQL via gorm,
// grounded on the teacher's pkg/conn connector (kept as-is — it is already
// a generic, reusable gorm/postgres wrapper with no HFT-specific content)
// and the teacher's gorm model conventions (internal/order's persistence
// layer used gorm tags the same way: explicit column types, indexed
// lookups by primary identifier).
package orderdb

import (
	"time"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// orderModel is the gorm row for a placed order's immutable shell plus its
// latest filling snapshot.
type orderModel struct {
	OrderID    []byte `gorm:"column:order_id;primaryKey;size:32"`
	Sender     []byte `gorm:"column:sender;index;size:20"`
	AmountAsset []byte `gorm:"column:amount_asset;size:32"`
	PriceAsset  []byte `gorm:"column:price_asset;size:32"`
	Side       uint8  `gorm:"column:side"`
	Price      int64  `gorm:"column:price"`
	Amount     int64  `gorm:"column:amount"`
	MatcherFee int64  `gorm:"column:matcher_fee"`
	FeeAsset   []byte `gorm:"column:fee_asset;size:32"`
	IsMarket   bool   `gorm:"column:is_market"`
	Timestamp  time.Time `gorm:"column:timestamp"`
	Expiration time.Time `gorm:"column:expiration"`

	FilledAmount int64 `gorm:"column:filled_amount"`
	FilledFee    int64 `gorm:"column:filled_fee"`
}

func (orderModel) TableName() string { return "matcher_orders" }

// orderInfoModel is the gorm row for an order's terminal/active status,
// written once an order leaves the active set.
type orderInfoModel struct {
	OrderID []byte `gorm:"column:order_id;primaryKey;size:32"`
	Owner   []byte `gorm:"column:owner;index;size:20"`
	Status  uint8  `gorm:"column:status"`

	FilledAmount int64     `gorm:"column:filled_amount"`
	FilledFee    int64     `gorm:"column:filled_fee"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (orderInfoModel) TableName() string { return "matcher_order_info" }

func toOrderModel(ao domain.AcceptedOrder) orderModel {
	return orderModel{
		OrderID:      ao.ID[:],
		Sender:       ao.Sender[:],
		AmountAsset:  assetBytes(ao.Pair.AmountAsset),
		PriceAsset:   assetBytes(ao.Pair.PriceAsset),
		Side:         uint8(ao.Side),
		Price:        int64(ao.Price),
		Amount:       int64(ao.Amount),
		MatcherFee:   int64(ao.MatcherFee),
		FeeAsset:     assetBytes(ao.FeeAsset),
		IsMarket:     ao.IsMarket,
		Timestamp:    ao.Timestamp,
		Expiration:   ao.Expiration,
		FilledAmount: int64(ao.FilledAmount),
		FilledFee:    int64(ao.FilledFee),
	}
}

func fromOrderModel(m orderModel) domain.AcceptedOrder {
	var id domain.OrderID
	copy(id[:], m.OrderID)
	var sender domain.Address
	copy(sender[:], m.Sender)

	return domain.AcceptedOrder{
		Order: domain.Order{
			ID:     id,
			Sender: sender,
			Pair: domain.AssetPair{
				AmountAsset: assetFromBytes(m.AmountAsset),
				PriceAsset:  assetFromBytes(m.PriceAsset),
			},
			Side:       domain.Side(m.Side),
			Price:      domain.Amount(m.Price),
			Amount:     domain.Amount(m.Amount),
			MatcherFee: domain.Amount(m.MatcherFee),
			FeeAsset:   assetFromBytes(m.FeeAsset),
			Timestamp:  m.Timestamp,
			Expiration: m.Expiration,
		},
		Filling: domain.Filling{
			FilledAmount: domain.Amount(m.FilledAmount),
			FilledFee:    domain.Amount(m.FilledFee),
		},
		IsMarket: m.IsMarket,
	}
}

func assetBytes(a domain.Asset) []byte {
	if a.Kind == domain.AssetNative {
		return nil
	}
	b := make([]byte, 32)
	copy(b, a.ID[:])
	return b
}

func assetFromBytes(b []byte) domain.Asset {
	if len(b) == 0 {
		return domain.NativeAsset
	}
	var id [32]byte
	copy(id[:], b)
	return domain.IssuedAsset(id)
}

func toStatusKind(k domain.OrderStatusKind) uint8 { return uint8(k) }
func fromStatusKind(v uint8) domain.OrderStatusKind { return domain.OrderStatusKind(v) }
