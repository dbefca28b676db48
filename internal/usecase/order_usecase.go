package usecase

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/metrics"
	repo "app/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

const (
	orderNumberAttempts = 3
	uniqueViolationCode = "23505"
)

type OrderUsecase struct {
	tx    repo.TransactionManager
	carts repo.CartRepository
	cfg   config.Config
	log   *log.Entry
}

func NewOrderUsecase(tx repo.TransactionManager, carts repo.CartRepository, cfg config.Config) *OrderUsecase {
	return &OrderUsecase{
		tx:    tx,
		carts: carts,
		cfg:   cfg,
		log:   log.WithField("component", "order-usecase"),
	}
}

type PlaceOrderItemInput struct {
	ProductID  int64  `json:"product_id"`
	VariantSKU string `json:"variant_sku"`
	Quantity   int64  `json:"quantity"`
	Price      int64  `json:"price"`
}

type PlaceOrderInput struct {
	Items           []PlaceOrderItemInput `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	Notes           string                `json:"notes"`
}

type OrderItemOutput struct {
	ProductID  int64  `json:"product_id"`
	VariantSKU string `json:"variant_sku"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	OrderNumber   string            `json:"order_number"`
	UserID        int64             `json:"user_id"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	PaymentStatus string            `json:"payment_status"`
	Subtotal      int64             `json:"subtotal"`
	ShippingFee   int64             `json:"shipping_fee"`
	Tax           int64             `json:"tax"`
	Discount      int64             `json:"discount"`
	TotalAmount   int64             `json:"total_amount"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "empty order")
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		if strings.TrimSpace(it.VariantSKU) == "" {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid variant_sku")
		}
	}
	if err := validateShippingAddress(in.ShippingAddress); err != nil {
		return OrderOutput{}, err
	}

	method := model.PaymentMethodBankTransfer
	if in.PaymentMethod != "" {
		if !model.ValidPaymentMethod(in.PaymentMethod) {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
		}
		method = model.PaymentMethod(in.PaymentMethod)
	}

	var out OrderOutput

	//注文番号の衝突だけリトライ
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		out, lastErr = u.placeOrderOnce(ctx, userID, in, method)
		if lastErr == nil {
			break
		}
		if !isUniqueViolation(lastErr) {
			return OrderOutput{}, lastErr
		}
	}
	if lastErr != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	metrics.OrdersCreated.Inc()

	//カート後始末はベストエフォート。失敗しても注文は成立している。
	productIDs := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	if cart, err := u.carts.FindActiveByUserID(ctx, userID); err == nil {
		if err := u.carts.RemoveProducts(ctx, cart.ID, productIDs); err != nil {
			u.log.WithError(err).WithField("order_number", out.OrderNumber).Warn("cart cleanup failed")
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		u.log.WithError(err).Warn("cart lookup failed after order creation")
	}

	return out, nil
}

// 注文処理はトランザクション。検証と在庫減算はReserveStockの1文にまとめる。
func (u *OrderUsecase) placeOrderOnce(ctx context.Context, userID int64, in PlaceOrderInput, method model.PaymentMethod) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		var subtotal int64 = 0

		for _, it := range in.Items {
			//商品取得
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "product not found")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "product not found")
			}

			//バリエーション取得
			v, err := r.Variants().FindBySKU(ctx, it.VariantSKU)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && v.ProductID != it.ProductID) {
				return NewHTTPError(http.StatusBadRequest, "variant not found")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			//クライアント表示価格と現在価格のずれは弾く
			if it.Price != 0 && it.Price != v.Price {
				return NewHTTPError(http.StatusBadRequest, "price changed")
			}

			//在庫減算（足りないならfalse）。これが在庫検証そのもの。
			ok, err := r.Inventory().ReserveStock(ctx, it.VariantSKU, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "out of stock")
			}

			//スナップショット
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           it.ProductID,
				VariantSKU:          it.VariantSKU,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   v.Price,
				Quantity:            it.Quantity,
				Status:              model.OrderStatusPending,
			})

			subtotal += v.Price * it.Quantity
		}

		//送料（しきい値以上で無料）
		var shippingFee int64 = u.cfg.FlatShippingFee
		if subtotal >= u.cfg.FreeShippingThreshold {
			shippingFee = 0
		}
		total := subtotal + shippingFee

		// 注文作成
		now := time.Now()
		orderNumber := newOrderNumber(now)
		orderID, err := r.Orders().Create(ctx, model.Order{
			OrderNumber:     orderNumber,
			UserID:          userID,
			Subtotal:        subtotal,
			ShippingFee:     shippingFee,
			TotalAmount:     total,
			Status:          model.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   model.PaymentStatusPending,
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//最初の履歴
		if err := r.Histories().Append(ctx, model.OrderStatusHistory{
			OrderID: orderID,
			Status:  string(model.OrderStatusPending),
			Note:    "Order created",
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		created := model.Order{
			ID:            orderID,
			OrderNumber:   orderNumber,
			UserID:        userID,
			Subtotal:      subtotal,
			ShippingFee:   shippingFee,
			TotalAmount:   total,
			Status:        model.OrderStatusPending,
			PaymentMethod: method,
			PaymentStatus: model.PaymentStatusPending,
			CreatedAt:     now,
		}
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type PaymentInfoOutput struct {
	OrderNumber      string `json:"order_number"`
	Amount           int64  `json:"amount"`
	BankCode         string `json:"bank_code"`
	AccountNumber    string `json:"account_number"`
	AccountName      string `json:"account_name"`
	TransferMemo     string `json:"transfer_memo"`
	QRCodeURL        string `json:"qr_code_url"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// 振込案内（QRと残り時間）を返す。
func (u *OrderUsecase) GetPaymentInfo(ctx context.Context, userID int64, orderID int64, now time.Time) (PaymentInfoOutput, error) {
	if userID <= 0 {
		return PaymentInfoOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return PaymentInfoOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		o = found
		return nil
	})
	if err != nil {
		return PaymentInfoOutput{}, err
	}

	remaining := int64(u.cfg.PaymentTimeoutMinutes)*60 - int64(now.Sub(o.CreatedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	qr := fmt.Sprintf(
		"https://img.vietqr.io/image/%s-%s-compact2.png?amount=%d&addInfo=%s&accountName=%s",
		u.cfg.BankCode,
		u.cfg.BankAccountNumber,
		o.TotalAmount,
		url.QueryEscape(o.OrderNumber),
		url.QueryEscape(u.cfg.BankAccountName),
	)

	return PaymentInfoOutput{
		OrderNumber:      o.OrderNumber,
		Amount:           o.TotalAmount,
		BankCode:         u.cfg.BankCode,
		AccountNumber:    u.cfg.BankAccountNumber,
		AccountName:      u.cfg.BankAccountName,
		TransferMemo:     o.OrderNumber,
		QRCodeURL:        qr,
		RemainingSeconds: remaining,
	}, nil
}

func validateShippingAddress(a model.ShippingAddress) error {
	if strings.TrimSpace(a.FullName) == "" ||
		strings.TrimSpace(a.Phone) == "" ||
		strings.TrimSpace(a.Street) == "" ||
		strings.TrimSpace(a.District) == "" ||
		strings.TrimSpace(a.City) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid shipping_address")
	}
	return nil
}

// ORD-YYYYMMDD-NNNNNN。末尾6桁は乱数で、衝突したら呼び出し側が作り直す。
func newOrderNumber(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint32(b[:]) % 1000000
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), n)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			VariantSKU: it.VariantSKU,
			Name:       it.ProductNameSnapshot,
			Price:      it.UnitPriceSnapshot,
			Quantity:   it.Quantity,
		})
	}

	return OrderOutput{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Tax:           o.Tax,
		Discount:      o.Discount,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		Items:         outItems,
	}
}
