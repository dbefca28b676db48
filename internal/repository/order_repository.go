package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// 入金確定で一度だけ書く内容
type PaymentDetails struct {
	TransactionID  string
	PaidAt         time.Time
	PaymentGateway string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	// 読み込んだ時点のstatusを条件に入れた条件付き更新。
	// 他の書き手（Sweeper・入金側）が先に進めていたらfalseを返す。
	UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error)

	// 振込メモから抜いたコードでpendingの銀行振込注文を1件探す。
	// order_numberが完全一致、または末尾コード部分を含むものを対象にする。
	FindPendingBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error)

	// 再配送判定用。同じコードで既にpaidの注文を探す。
	FindPaidBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error)

	// payment_status=pendingのときだけ入金を確定する条件付き更新。
	// 2回目以降の適用やキャンセル済みにはfalseを返す（勝者判定はここだけ）。
	MarkPaid(ctx context.Context, orderID int64, d PaymentDetails) (bool, error)

	// 未入金（payment_status=pending かつ status IN (pending,confirmed)）の
	// ときだけキャンセルする条件付き更新。入金側と同じ行で排他になる。
	CancelIfUnpaid(ctx context.Context, orderID int64, reason string) (bool, error)

	// 期限切れ候補（銀行振込・未入金・cutoffより古い）のID一覧
	ListExpiredBankTransferIDs(ctx context.Context, cutoff time.Time) ([]int64, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
