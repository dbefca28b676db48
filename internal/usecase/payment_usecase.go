package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/metrics"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Webhookの業務的な失敗はエラーにせず結果として返す。
// プロバイダは5xxで再送してくるので、受領は常に成立させる。
type WebhookResult struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

const (
	webhookErrUnrecognizedPayload = "unrecognized payload"
	webhookErrOrderNumberNotFound = "order number not found"
	webhookErrOrderNotFound       = "order not found"
	webhookErrAmountMismatch      = "amount mismatch"
)

type PaymentUsecase struct {
	tx       repo.TransactionManager
	cfg      config.Config
	adapters []payment.Adapter
	log      *log.Entry
	now      func() time.Time
}

func NewPaymentUsecase(tx repo.TransactionManager, cfg config.Config) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		cfg:      cfg,
		adapters: payment.DefaultAdapters(),
		log:      log.WithField("component", "payment-usecase"),
		now:      time.Now,
	}
}

// HandleWebhookは正規化→メモ照合→条件付き更新の順で入金を突き合わせる。
// どの分岐でもWebhookResultで返し、transportへはエラーを投げない。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, body []byte) WebhookResult {
	incoming, adapterName, ok := payment.Normalize(body, u.adapters)
	if !ok {
		u.log.WithField("body_size", len(body)).Warn("webhook payload did not match any adapter")
		metrics.PaymentWebhooks.WithLabelValues("unrecognized").Inc()
		return WebhookResult{Success: false, Error: webhookErrUnrecognizedPayload}
	}

	logger := u.log.WithFields(log.Fields{
		"adapter":        adapterName,
		"transaction_id": incoming.TransactionID,
		"amount":         incoming.Amount,
	})

	code, ok := payment.ExtractOrderCode(incoming.Content)
	if !ok {
		logger.WithField("content", incoming.Content).Warn("no order code in transfer memo")
		metrics.PaymentWebhooks.WithLabelValues("no_order_code").Inc()
		return WebhookResult{Success: false, Error: webhookErrOrderNumberNotFound}
	}

	var result WebhookResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//pendingで絞って探すので、同じWebhookの再配送は2回目が空振りになる
		o, found, err := r.Orders().FindPendingBankTransferByCode(ctx, code)
		if err != nil {
			return err
		}
		if !found {
			//同じ通知の再配送なら処理済みをそのまま成功として返す
			paid, isReplay, err := r.Orders().FindPaidBankTransferByCode(ctx, code)
			if err != nil {
				return err
			}
			if isReplay && paid.TransactionID == incoming.TransactionID {
				logger.WithField("order_number", paid.OrderNumber).Info("duplicate webhook delivery, already applied")
				metrics.PaymentWebhooks.WithLabelValues("replay").Inc()
				result = WebhookResult{Success: true, OrderNumber: paid.OrderNumber}
				return nil
			}

			logger.WithField("code", code).Warn("no pending bank transfer order for code")
			metrics.PaymentWebhooks.WithLabelValues("order_not_found").Inc()
			result = WebhookResult{Success: false, Error: webhookErrOrderNotFound}
			return nil
		}

		//銀行側の丸めを許容する
		if absDiff(incoming.Amount, o.TotalAmount) > u.cfg.PaymentAmountTolerance {
			logger.WithFields(log.Fields{
				"order_number": o.OrderNumber,
				"expected":     o.TotalAmount,
			}).Warn("transfer amount outside tolerance, leaving order pending")
			metrics.PaymentWebhooks.WithLabelValues("amount_mismatch").Inc()
			result = WebhookResult{Success: false, Error: webhookErrAmountMismatch}
			return nil
		}

		applied, err := u.applyPayment(ctx, r, o, appliedPayment{
			TransactionID: incoming.TransactionID,
			PaidAt:        paidAtOrNow(incoming.TransferTime, u.now()),
			Gateway:       gatewayOrDefault(incoming.BankCode),
			Note:          "Bank transfer matched",
		})
		if err != nil {
			return err
		}
		if !applied {
			//入金側かスイーパーのどちらかが先に勝っていた。再配送扱いで成功応答。
			logger.WithField("order_number", o.OrderNumber).Info("payment already applied, webhook is a no-op")
			metrics.PaymentWebhooks.WithLabelValues("replay").Inc()
		} else {
			metrics.PaymentWebhooks.WithLabelValues("matched").Inc()
		}

		result = WebhookResult{Success: true, OrderNumber: o.OrderNumber}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("webhook processing failed")
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		return WebhookResult{Success: false, Error: "internal error"}
	}

	return result
}

type ConfirmPaymentInput struct {
	TransactionID string `json:"transaction_id"`
	Note          string `json:"note"`
}

// 手動確定。メモ違い・現金など、Webhookで拾えなかった入金の逃げ道。
// 冪等の仕掛けはWebhookと同じ条件付き更新。
func (u *PaymentUsecase) ConfirmPayment(ctx context.Context, operatorID int64, orderID int64, in ConfirmPaymentInput) (OrderOutput, error) {
	if operatorID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if o.PaymentStatus == model.PaymentStatusPaid {
			return NewHTTPError(http.StatusBadRequest, "already paid")
		}
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "already cancelled")
		}

		txID := strings.TrimSpace(in.TransactionID)
		if txID == "" {
			txID = "MANUAL-" + uuid.NewString()
		}
		note := strings.TrimSpace(in.Note)
		if note == "" {
			note = "Payment confirmed manually"
		}

		applied, err := u.applyPaymentBy(ctx, r, o, appliedPayment{
			TransactionID: txID,
			PaidAt:        u.now(),
			Gateway:       "manual",
			Note:          note,
		}, &operatorID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !applied {
			//取得後にスイーパー等が割り込んだ
			return NewHTTPError(http.StatusConflict, "order state changed")
		}

		updated, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toOrderOutput(updated, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type appliedPayment struct {
	TransactionID string
	PaidAt        time.Time
	Gateway       string
	Note          string
}

func (u *PaymentUsecase) applyPayment(ctx context.Context, r repo.TxRepos, o model.Order, p appliedPayment) (bool, error) {
	return u.applyPaymentBy(ctx, r, o, p, nil)
}

// 条件付き更新が通ったときだけ履歴を書く。負けた側は何も書かない。
func (u *PaymentUsecase) applyPaymentBy(ctx context.Context, r repo.TxRepos, o model.Order, p appliedPayment, operatorID *int64) (bool, error) {
	applied, err := r.Orders().MarkPaid(ctx, o.ID, repo.PaymentDetails{
		TransactionID:  p.TransactionID,
		PaidAt:         p.PaidAt,
		PaymentGateway: p.Gateway,
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if err := r.Histories().Append(ctx, model.OrderStatusHistory{
		OrderID:   o.ID,
		Status:    "payment_confirmed",
		Note:      p.Note,
		UpdatedBy: operatorID,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func paidAtOrNow(t *time.Time, now time.Time) time.Time {
	if t != nil {
		return *t
	}
	return now
}

func gatewayOrDefault(bankCode string) string {
	if bankCode != "" {
		return bankCode
	}
	return "bank_transfer"
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
