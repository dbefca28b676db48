package repository

import (
	"context"

	"app/internal/domain/model"

	"gorm.io/gorm"
)

type OrderStatusHistoryGormRepository struct {
	db *gorm.DB
}

func NewOrderStatusHistoryGormRepository(db *gorm.DB) *OrderStatusHistoryGormRepository {
	return &OrderStatusHistoryGormRepository{db: db}
}

// 追記のみ
func (r *OrderStatusHistoryGormRepository) Append(ctx context.Context, entry model.OrderStatusHistory) error {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	return nil
}

func (r *OrderStatusHistoryGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	var items []model.OrderStatusHistory
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.OrderStatusHistory{}, err
	}
	return items, nil
}
