package repository

import (
	"context"

	"app/internal/domain/model"
)

type VariantRepository interface {
	FindBySKU(ctx context.Context, sku string) (model.ProductVariant, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error)
}

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, sku string, newStock int64) error

	// 在庫が足りるときだけ減算し、同じ文でsold_countも進める。
	// falseなら一切書かれていない。
	ReserveStock(ctx context.Context, sku string, qty int64) (bool, error)

	// 在庫戻し（キャンセル・期限切れ）。sold_countも巻き戻す。
	ReleaseStock(ctx context.Context, sku string, qty int64) error
}
