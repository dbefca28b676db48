package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

// 読み込んだstatusのままの行だけ更新する。勝敗はRowsAffectedで決まる。
func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 振込メモのコードでpendingの銀行振込注文を探す。
// payment_status=pendingで絞るので、同じWebhookが二度来ても2回目は空振りになる。
func (r *OrderGormRepository) FindPendingBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ?", model.PaymentMethodBankTransfer, model.PaymentStatusPending).
		Where("order_number = ? OR order_number LIKE ?", code, "%"+code+"%").
		Order("id desc").
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// 再配送されたWebhookの判定用。
func (r *OrderGormRepository) FindPaidBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ?", model.PaymentMethodBankTransfer, model.PaymentStatusPaid).
		Where("order_number = ? OR order_number LIKE ?", code, "%"+code+"%").
		Order("id desc").
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// pendingのときだけ入金を確定する。勝敗はRowsAffectedで決まる。
func (r *OrderGormRepository) MarkPaid(ctx context.Context, orderID int64, d repo.PaymentDetails) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":  model.PaymentStatusPaid,
			"status":          model.OrderStatusConfirmed,
			"transaction_id":  d.TransactionID,
			"paid_at":         d.PaidAt,
			"payment_gateway": d.PaymentGateway,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 未入金のときだけキャンセルする。入金側(MarkPaid)とどちらか一方しか通らない。
func (r *OrderGormRepository) CancelIfUnpaid(ctx context.Context, orderID int64, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Where("status IN ?", []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusCancelled,
			"payment_status": model.PaymentStatusFailed,
			"cancel_reason":  reason,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 期限切れ候補のIDだけ返す。キャンセル自体は1件ずつ別Txで行う。
func (r *OrderGormRepository) ListExpiredBankTransferIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("payment_method = ? AND payment_status = ?", model.PaymentMethodBankTransfer, model.PaymentStatusPending).
		Where("status IN ?", []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}).
		Where("created_at < ?", cutoff).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//user_id 絞り込み
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}
