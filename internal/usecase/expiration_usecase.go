package usecase

import (
	"context"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/metrics"
	repo "app/internal/repository"

	log "github.com/sirupsen/logrus"
)

type SweepResult struct {
	CancelledCount  int      `json:"cancelled_count"`
	CancelledOrders []string `json:"cancelled_orders"`
}

type ExpirationUsecase struct {
	tx  repo.TransactionManager
	cfg config.Config
	log *log.Entry
	now func() time.Time
}

func NewExpirationUsecase(tx repo.TransactionManager, cfg config.Config) *ExpirationUsecase {
	return &ExpirationUsecase{
		tx:  tx,
		cfg: cfg,
		log: log.WithField("component", "expiration-usecase"),
		now: time.Now,
	}
}

// Sweepは期限切れの未入金注文をキャンセルして在庫を戻す。
// 注文ごとに独立したトランザクションなので、1件の失敗が他を巻き込まない。
func (u *ExpirationUsecase) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := u.now().Add(-time.Duration(u.cfg.PaymentTimeoutMinutes) * time.Minute)

	var ids []int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().ListExpiredBankTransferIDs(ctx, cutoff)
		if err != nil {
			return err
		}
		ids = found
		return nil
	})
	if err != nil {
		metrics.ExpirationSweeps.WithLabelValues("error").Inc()
		return SweepResult{}, err
	}

	result := SweepResult{CancelledOrders: []string{}}

	for _, id := range ids {
		orderNumber, cancelled, err := u.expireOne(ctx, id)
		if err != nil {
			u.log.WithError(err).WithField("order_id", id).Warn("failed to expire order, skipping")
			continue
		}
		if cancelled {
			result.CancelledCount++
			result.CancelledOrders = append(result.CancelledOrders, orderNumber)
			metrics.ExpiredOrders.Inc()
		}
	}

	metrics.ExpirationSweeps.WithLabelValues("ok").Inc()
	return result, nil
}

// 1注文ぶんのキャンセルを1トランザクションで行う。
// 条件付き更新が空振りしたら（先に入金が勝っていたら）何もしない。
func (u *ExpirationUsecase) expireOne(ctx context.Context, orderID int64) (string, bool, error) {
	var orderNumber string
	var cancelled bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().CancelIfUnpaid(ctx, orderID, "expired")
		if err != nil {
			return err
		}
		if !ok {
			//入金側が先に通った。こちらは引き下がる。
			return nil
		}

		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		orderNumber = o.OrderNumber

		//OrderFactoryの減算を巻き戻す
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := r.Inventory().ReleaseStock(ctx, it.VariantSKU, it.Quantity); err != nil {
				return err
			}
		}

		if err := r.Histories().Append(ctx, model.OrderStatusHistory{
			OrderID: orderID,
			Status:  string(model.OrderStatusCancelled),
			Note:    "Cancelled by expiration sweep",
		}); err != nil {
			return err
		}

		cancelled = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return orderNumber, cancelled, nil
}
