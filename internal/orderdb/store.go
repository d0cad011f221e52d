package orderdb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/pkg/conn"
)

// Store implements domain.OrderDB against a PostgreSQL connection opened
// through pkg/conn.
type Store struct {
	client *conn.Client
}

// Open dials PostgreSQL via pkg/conn.New and migrates the order tables.
func Open(option conn.Option) (*Store, error) {
	client, err := conn.New(option)
	if err != nil {
		return nil, err
	}
	if err := client.DB().AutoMigrate(&orderModel{}, &orderInfoModel{}); err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.client.Close() }

// SaveOrder upserts an order's current shell/filling snapshot.
func (s *Store) SaveOrder(ctx context.Context, ao domain.AcceptedOrder) error {
	row := toOrderModel(ao)
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"filled_amount", "filled_fee"}),
		}).
		Create(&row).Error
}

// SaveOrderInfo upserts an order's terminal/active status snapshot.
func (s *Store) SaveOrderInfo(ctx context.Context, id domain.OrderID, owner domain.Address, info domain.OrderInfo) error {
	updated := info.Updated
	if updated == 0 {
		updated = time.Now().UnixNano()
	}
	row := orderInfoModel{
		OrderID:      id[:],
		Owner:        owner[:],
		Status:       toStatusKind(info.Status.Kind),
		FilledAmount: int64(info.Status.Filling.FilledAmount),
		FilledFee:    int64(info.Status.Filling.FilledFee),
		UpdatedAt:    time.Unix(0, updated),
	}
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

// Status returns the persisted terminal/active status for id, NotFound if
// no order-info row exists yet.
func (s *Store) Status(ctx context.Context, id domain.OrderID) (domain.OrderStatus, error) {
	var row orderInfoModel
	err := s.client.DB().WithContext(ctx).Where("order_id = ?", id[:]).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.OrderStatus{Kind: domain.StatusNotFound}, nil
	}
	if err != nil {
		return domain.OrderStatus{}, err
	}
	return domain.OrderStatus{
		Kind: fromStatusKind(row.Status),
		Filling: domain.Filling{
			FilledAmount: domain.Amount(row.FilledAmount),
			FilledFee:    domain.Amount(row.FilledFee),
		},
	}, nil
}

// ContainsInfo reports whether an order-info row exists for id.
func (s *Store) ContainsInfo(ctx context.Context, id domain.OrderID) (bool, error) {
	var count int64
	err := s.client.DB().WithContext(ctx).Model(&orderInfoModel{}).Where("order_id = ?", id[:]).Count(&count).Error
	return count > 0, err
}

// LoadRemainingOrders loads every historic order for owner (optionally
// restricted to pair) not already present in knownActive, used by
// GetOrdersStatuses to merge active and historic orders.
func (s *Store) LoadRemainingOrders(ctx context.Context, owner domain.Address, pair *domain.AssetPair, knownActive map[domain.OrderID]struct{}) ([]domain.OrderRecord, error) {
	var rows []orderModel
	q := s.client.DB().WithContext(ctx).Where("sender = ?", owner[:])
	if pair != nil {
		q = q.Where("amount_asset = ? AND price_asset = ?", assetBytes(pair.AmountAsset), assetBytes(pair.PriceAsset))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([][]byte, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.OrderID)
	}
	var infos []orderInfoModel
	if len(ids) > 0 {
		if err := s.client.DB().WithContext(ctx).Where("order_id IN ?", ids).Find(&infos).Error; err != nil {
			return nil, err
		}
	}
	infoByID := make(map[string]orderInfoModel, len(infos))
	for _, info := range infos {
		infoByID[string(info.OrderID)] = info
	}

	out := make([]domain.OrderRecord, 0, len(rows))
	for _, row := range rows {
		ao := fromOrderModel(row)
		if _, active := knownActive[ao.ID]; active {
			continue
		}
		status := domain.OrderStatus{Kind: domain.StatusAccepted, Filling: ao.Filling}
		if info, ok := infoByID[string(row.OrderID)]; ok {
			status = domain.OrderStatus{
				Kind: fromStatusKind(info.Status),
				Filling: domain.Filling{
					FilledAmount: domain.Amount(info.FilledAmount),
					FilledFee:    domain.Amount(info.FilledFee),
				},
			}
		}
		out = append(out, domain.OrderRecord{Order: ao, Status: status})
	}
	return out, nil
}
