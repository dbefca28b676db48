package usecase

import (
	"context"
	"errors"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 管理者側の注文操作
type AdminOrderUsecase struct {
	tx repo.TransactionManager
}

func NewAdminOrderUsecase(tx repo.TransactionManager) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx}
}

type AdminOrderListOutput struct {
	Orders []model.Order `json:"orders"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

// List は管理者用の注文一覧（状態・ユーザー・期間で絞り込み）。
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Status != "" && !model.ValidOrderStatus(f.Status) {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out AdminOrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = AdminOrderListOutput{Orders: orders, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})
	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

// GetDetail は注文1件と履歴。
func (u *AdminOrderUsecase) GetDetail(ctx context.Context, orderID int64) (model.Order, []model.OrderItem, []model.OrderStatusHistory, error) {
	if orderID <= 0 {
		return model.Order{}, nil, nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		order     model.Order
		items     []model.OrderItem
		histories []model.OrderStatusHistory
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		its, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		hs, err := r.Histories().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order, items, histories = o, its, hs
		return nil
	})
	if err != nil {
		return model.Order{}, nil, nil, err
	}
	return order, items, histories, nil
}

type UpdateOrderStatusInput struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateStatus は遷移表に従って状態を進める。
// キャンセル時は出荷前の注文に限り在庫を戻す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, orderID int64, operatorID int64, in UpdateOrderStatusInput) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !model.ValidOrderStatus(in.Status) {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	next := model.OrderStatus(in.Status)

	var updated model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if model.IsTerminal(o.Status) {
			return NewHTTPError(http.StatusConflict, "order is in terminal state")
		}
		if !model.CanTransition(o.Status, next) {
			return NewHTTPError(http.StatusConflict, "invalid transition")
		}

		// 読み込んだstatusを条件にした更新で勝敗を決める。
		// SweeperやWebhookが先に進めていたらRowsAffected=0で負け。
		won, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, next)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !won {
			return NewHTTPError(http.StatusConflict, "order state changed")
		}

		// 在庫を戻すのは勝った側だけ。出荷前のキャンセルに限る。
		if next == model.OrderStatusCancelled && model.CancelRestoresStock(o.Status) {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, it := range items {
				if err := r.Inventory().ReleaseStock(ctx, it.VariantSKU, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		entry := model.OrderStatusHistory{
			OrderID:   orderID,
			Status:    string(next),
			Note:      in.Note,
			UpdatedBy: &operatorID,
		}
		if err := r.Histories().Append(ctx, entry); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = next
		updated = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return updated, nil
}
