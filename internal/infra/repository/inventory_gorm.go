package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type VariantGormRepository struct {
	db *gorm.DB
}

func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

func (r *VariantGormRepository) FindBySKU(ctx context.Context, sku string) (model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	var items []model.ProductVariant
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.ProductVariant{}, err
	}
	return items, nil
}

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, sku string, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("sku = ?", sku).
		Update("stock", newStock)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす。読み直し無しの1文なので検証と減算の間に隙間がない。
func (r *InventoryGormRepository) ReserveStock(ctx context.Context, sku string, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("sku = ? AND stock >= ?", sku, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"sold_count": gorm.Expr("sold_count + ?", qty),
		})

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル・期限切れ）。sold_countも巻き戻す。
func (r *InventoryGormRepository) ReleaseStock(ctx context.Context, sku string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("sku = ?", sku).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"sold_count": gorm.Expr("GREATEST(sold_count - ?, 0)", qty),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
