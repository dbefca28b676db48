package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 管理者の在庫直接調整（棚卸し・破損など）
type AdminInventoryUsecase struct {
	tx repo.TransactionManager
}

func NewAdminInventoryUsecase(tx repo.TransactionManager) *AdminInventoryUsecase {
	return &AdminInventoryUsecase{tx: tx}
}

type SetStockInput struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

func (u *AdminInventoryUsecase) SetStock(ctx context.Context, sku string, in SetStockInput) (model.ProductVariant, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return model.ProductVariant{}, NewHTTPError(http.StatusBadRequest, "invalid sku")
	}
	if in.Stock < 0 {
		return model.ProductVariant{}, NewHTTPError(http.StatusBadRequest, "invalid stock")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return model.ProductVariant{}, NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	var updated model.ProductVariant
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Variants().FindBySKU(ctx, sku); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "variant not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Inventory().SetStock(ctx, sku, in.Stock); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		v, err := r.Variants().FindBySKU(ctx, sku)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		updated = v
		return nil
	})
	if err != nil {
		return model.ProductVariant{}, err
	}
	return updated, nil
}
