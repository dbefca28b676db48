package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	histories  repo.OrderStatusHistoryRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	inventory  repo.InventoryRepository
	variants   repo.VariantRepository
	products   repo.ProductRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                 { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository         { return r.orderItems }
func (r *TxReposMock) Histories() repo.OrderStatusHistoryRepository { return r.histories }
func (r *TxReposMock) Carts() repo.CartRepository                   { return r.carts }
func (r *TxReposMock) CartItems() repo.CartItemRepository           { return r.cartItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository          { return r.inventory }
func (r *TxReposMock) Variants() repo.VariantRepository             { return r.variants }
func (r *TxReposMock) Products() repo.ProductRepository             { return r.products }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) FindPendingBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) FindPaidBankTransferByCode(ctx context.Context, code string) (model.Order, bool, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) MarkPaid(ctx context.Context, orderID int64, d repo.PaymentDetails) (bool, error) {
	args := m.Called(ctx, orderID, d)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) CancelIfUnpaid(ctx context.Context, orderID int64, reason string) (bool, error) {
	args := m.Called(ctx, orderID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListExpiredBankTransferIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	args := m.Called(ctx, cutoff)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type HistoryRepoMock struct{ mock.Mock }

func (m *HistoryRepoMock) Append(ctx context.Context, entry model.OrderStatusHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *HistoryRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	args := m.Called(ctx, orderID)
	entries, _ := args.Get(0).([]model.OrderStatusHistory)
	return entries, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, sku string, newStock int64) error {
	args := m.Called(ctx, sku, newStock)
	return args.Error(0)
}

func (m *InventoryRepoMock) ReserveStock(ctx context.Context, sku string, qty int64) (bool, error) {
	args := m.Called(ctx, sku, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) ReleaseStock(ctx context.Context, sku string, qty int64) error {
	args := m.Called(ctx, sku, qty)
	return args.Error(0)
}

type VariantRepoMock struct{ mock.Mock }

func (m *VariantRepoMock) FindBySKU(ctx context.Context, sku string) (model.ProductVariant, error) {
	args := m.Called(ctx, sku)
	v, _ := args.Get(0).(model.ProductVariant)
	return v, args.Error(1)
}

func (m *VariantRepoMock) ListByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	args := m.Called(ctx, productID)
	vs, _ := args.Get(0).([]model.ProductVariant)
	return vs, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used in these tests")
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	panic("not used in these tests")
}

func (m *ProductRepoMock) SoftDelete(ctx context.Context, id int64) error {
	panic("not used in these tests")
}

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	args := m.Called(ctx, cartID, status)
	return args.Error(0)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *CartRepoMock) RemoveProducts(ctx context.Context, cartID int64, productIDs []int64) error {
	args := m.Called(ctx, cartID, productIDs)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) UpsertByCartAndSKU(ctx context.Context, cartID int64, productID int64, sku string, addQty int64, unitPriceSnapshot int64) error {
	args := m.Called(ctx, cartID, productID, sku, addQty, unitPriceSnapshot)
	return args.Error(0)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	args := m.Called(ctx, cartItemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, cartItemID int64) error {
	args := m.Called(ctx, cartItemID)
	return args.Error(0)
}

func (m *CartItemRepoMock) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	args := m.Called(ctx, cartItemID)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Error(1)
}

func (m *CartItemRepoMock) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	args := m.Called(ctx, cartItemID, userID)
	return args.Bool(0), args.Error(1)
}

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
