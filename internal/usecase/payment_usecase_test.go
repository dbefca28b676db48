package usecase_test

import (
	"context"
	"testing"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func paymentTestConfig() config.Config {
	return config.Config{
		PaymentTimeoutMinutes:  30,
		PaymentAmountTolerance: 1000,
	}
}

// =====================
// HandleWebhook tests
// =====================

func TestPaymentUsecase_HandleWebhook_UnrecognizedPayload(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	res := uc.HandleWebhook(context.Background(), []byte(`{"hello":"world"}`))
	assert.False(t, res.Success)
	assert.Equal(t, "unrecognized payload", res.Error)

	// DBには触らない
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_NoOrderCodeInMemo(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	res := uc.HandleWebhook(context.Background(), []byte(`{"amount":530000,"content":"thanks for the shirt"}`))
	assert.False(t, res.Success)
	assert.Equal(t, "order number not found", res.Error)

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_ExactMatch(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{
		ID:            7,
		OrderNumber:   "ORD-20260115-0042",
		TotalAmount:   530000,
		Status:        model.OrderStatusPending,
		PaymentMethod: model.PaymentMethodBankTransfer,
		PaymentStatus: model.PaymentStatusPending,
	}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.MatchedBy(func(d repo.PaymentDetails) bool {
		return d.TransactionID == "TX-1"
	})).Return(true, nil)
	historyRepo.On("Append", mock.Anything, mock.MatchedBy(func(h model.OrderStatusHistory) bool {
		return h.OrderID == 7 && h.Status == "payment_confirmed"
	})).Return(nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	body := []byte(`{"amount":530000,"content":"ORD-20260115-0042","transactionId":"TX-1"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)
	assert.Equal(t, "ORD-20260115-0042", res.OrderNumber)

	ordersRepo.AssertExpectations(t)
	historyRepo.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_CompactCodeInMemo(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 9, OrderNumber: "ORD-20260115-2345", TotalAmount: 200000}

	// "DH00412345 thanks" → 数字部分 "00412345" で照合
	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "00412345").Return(order, true, nil)
	ordersRepo.On("MarkPaid", mock.Anything, int64(9), mock.Anything).Return(true, nil)
	historyRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	body := []byte(`{"amount":200000,"content":"DH00412345 thanks","transactionId":"TX-2"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)
	ordersRepo.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_AmountWithinTolerance(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 7, OrderNumber: "ORD-20260115-0042", TotalAmount: 530000}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.Anything).Return(true, nil)
	historyRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	// 銀行の手数料引きで500不足。許容1000の範囲内。
	body := []byte(`{"amount":529500,"content":"ORD-20260115-0042","transactionId":"TX-3"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)
	ordersRepo.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_AmountExactlyAtToleranceBoundary(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 7, OrderNumber: "ORD-20260115-0042", TotalAmount: 530000}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.Anything).Return(true, nil)
	historyRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	// 差額1000＝許容値ちょうどは合致扱い
	body := []byte(`{"amount":529000,"content":"ORD-20260115-0042","transactionId":"TX-3B"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)
	ordersRepo.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_AmountOneUnitPastTolerance(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 7, OrderNumber: "ORD-20260115-0042", TotalAmount: 530000}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	// 差額1001は1足りないだけでも不一致
	body := []byte(`{"amount":528999,"content":"ORD-20260115-0042","transactionId":"TX-3C"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.False(t, res.Success)
	assert.Equal(t, "amount mismatch", res.Error)
	ordersRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_AmountOutsideTolerance(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 7, OrderNumber: "ORD-20260115-0042", TotalAmount: 530000}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	// 2000不足は許容外。注文はpendingのまま。
	body := []byte(`{"amount":528000,"content":"ORD-20260115-0042","transactionId":"TX-4"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.False(t, res.Success)
	assert.Equal(t, "amount mismatch", res.Error)

	ordersRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_OrderNotFound(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-9999").Return(model.Order{}, false, nil)
	ordersRepo.On("FindPaidBankTransferByCode", mock.Anything, "ORD-20260115-9999").Return(model.Order{}, false, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	body := []byte(`{"amount":100000,"content":"ORD-20260115-9999","transactionId":"TX-5"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.False(t, res.Success)
	assert.Equal(t, "order not found", res.Error)
	ordersRepo.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_DuplicateDelivery_NoOpSuccess(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	paid := model.Order{
		ID:            7,
		OrderNumber:   "ORD-20260115-0042",
		TotalAmount:   530000,
		PaymentStatus: model.PaymentStatusPaid,
		TransactionID: "TX-1",
	}

	// pendingでは見つからず、同じtransaction_idのpaid注文がある＝再配送
	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(model.Order{}, false, nil)
	ordersRepo.On("FindPaidBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(paid, true, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	body := []byte(`{"amount":530000,"content":"ORD-20260115-0042","transactionId":"TX-1"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)
	assert.Equal(t, "ORD-20260115-0042", res.OrderNumber)

	ordersRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_LostRaceIsNoOpSuccess(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	order := model.Order{ID: 7, OrderNumber: "ORD-20260115-0042", TotalAmount: 530000}

	ordersRepo.On("FindPendingBankTransferByCode", mock.Anything, "ORD-20260115-0042").Return(order, true, nil)
	// 条件付き更新が空振り＝別の適用が先に勝った
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.Anything).Return(false, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	body := []byte(`{"amount":530000,"content":"ORD-20260115-0042","transactionId":"TX-6"}`)
	res := uc.HandleWebhook(ctx, body)

	assert.True(t, res.Success)

	// 負けた側は履歴を書かない
	historyRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// =====================
// ConfirmPayment tests
// =====================

func TestPaymentUsecase_ConfirmPayment_InvalidInput(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	_, err := uc.ConfirmPayment(context.Background(), 0, 1, usecase.ConfirmPaymentInput{})
	assertErrContains(t, err, "unauthorized")

	_, err = uc.ConfirmPayment(context.Background(), 1, 0, usecase.ConfirmPaymentInput{})
	assertErrContains(t, err, "invalid id")
}

func TestPaymentUsecase_ConfirmPayment_AlreadyPaid(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:            7,
		PaymentStatus: model.PaymentStatusPaid,
	}, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	_, err := uc.ConfirmPayment(ctx, 1, 7, usecase.ConfirmPaymentInput{})
	assertErrContains(t, err, "already paid")
}

func TestPaymentUsecase_ConfirmPayment_AlreadyCancelled(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:     7,
		Status: model.OrderStatusCancelled,
	}, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	_, err := uc.ConfirmPayment(ctx, 1, 7, usecase.ConfirmPaymentInput{})
	assertErrContains(t, err, "already cancelled")
}

func TestPaymentUsecase_ConfirmPayment_Success_GeneratesManualTransactionID(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	pending := model.Order{
		ID:            7,
		OrderNumber:   "ORD-20260115-0042",
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
	confirmed := pending
	confirmed.Status = model.OrderStatusConfirmed
	confirmed.PaymentStatus = model.PaymentStatusPaid

	ordersRepo.On("FindByID", mock.Anything, int64(7)).Return(pending, nil).Once()
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.MatchedBy(func(d repo.PaymentDetails) bool {
		// transaction_id未指定なら MANUAL- を自動採番、gatewayはmanual固定
		return len(d.TransactionID) > len("MANUAL-") &&
			d.TransactionID[:7] == "MANUAL-" &&
			d.PaymentGateway == "manual"
	})).Return(true, nil)
	historyRepo.On("Append", mock.Anything, mock.MatchedBy(func(h model.OrderStatusHistory) bool {
		return h.Status == "payment_confirmed" && h.UpdatedBy != nil && *h.UpdatedBy == int64(99)
	})).Return(nil)
	ordersRepo.On("FindByID", mock.Anything, int64(7)).Return(confirmed, nil).Once()
	itemsRepo.On("ListByOrderID", mock.Anything, int64(7)).Return([]model.OrderItem{}, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	out, err := uc.ConfirmPayment(ctx, 99, 7, usecase.ConfirmPaymentInput{})
	assert.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)

	ordersRepo.AssertExpectations(t)
	historyRepo.AssertExpectations(t)
}

func TestPaymentUsecase_ConfirmPayment_ConflictWhenSweeperWins(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	historyRepo := new(HistoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, histories: historyRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	pending := model.Order{ID: 7, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending}

	ordersRepo.On("FindByID", mock.Anything, int64(7)).Return(pending, nil)
	// 取得とMarkPaidの間にスイーパーがキャンセルした
	ordersRepo.On("MarkPaid", mock.Anything, int64(7), mock.Anything).Return(false, nil)

	uc := usecase.NewPaymentUsecase(tx, paymentTestConfig())

	_, err := uc.ConfirmPayment(ctx, 1, 7, usecase.ConfirmPaymentInput{TransactionID: "BANK-REF-1"})
	assertErrContains(t, err, "order state changed")

	historyRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
