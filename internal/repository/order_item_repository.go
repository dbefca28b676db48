package repository

import (
	"context"

	"app/internal/domain/model"
)

// 注文明細。注文確定時の一括作成と参照だけで、個別更新は無い。
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
