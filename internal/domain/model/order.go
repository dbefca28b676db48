package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodEwallet      PaymentMethod = "ewallet"
)

// 注文に直接持たせる配送先（住所帳とは独立したスナップショット）
type ShippingAddress struct {
	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone    string `gorm:"type:varchar(30);not null" json:"phone"`
	Street   string `gorm:"type:varchar(255);not null" json:"street"`
	Ward     string `gorm:"type:varchar(100)" json:"ward,omitempty"`
	District string `gorm:"type:varchar(100);not null" json:"district"`
	City     string `gorm:"type:varchar(100);not null" json:"city"`
	ZipCode  string `gorm:"type:varchar(20)" json:"zip_code,omitempty"`
}

type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(30);not null;uniqueIndex" json:"order_number"`
	UserID      int64  `gorm:"not null;index" json:"user_id"`

	Subtotal    int64 `gorm:"not null" json:"subtotal"`
	ShippingFee int64 `gorm:"not null" json:"shipping_fee"`
	Tax         int64 `gorm:"not null;default:0" json:"tax"`
	Discount    int64 `gorm:"not null;default:0" json:"discount"`
	TotalAmount int64 `gorm:"not null" json:"total_amount"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null;index" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	// 初回の入金確定で一度だけ書く
	TransactionID  string     `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	PaymentGateway string     `gorm:"type:varchar(50)" json:"payment_gateway,omitempty"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	CancelReason      string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	TrackingNumber    string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 通常フローで許可する状態遷移
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned, OrderStatusRefunded},
	// cancelled / refunded / returned は終端
}

// CanTransitionはfrom→toが許可された遷移かどうか。
func CanTransition(from OrderStatus, to OrderStatus) bool {
	if from == to {
		return false
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalは以後の状態変更を受け付けない状態かどうか。
func IsTerminal(s OrderStatus) bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// CancelRestoresStockはキャンセル時に在庫を戻すべき状態かどうか。
// 出荷済み以降は在庫が倉庫に無いので戻さない。
func CancelRestoresStock(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	default:
		return false
	}
}

func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusRefunded, OrderStatusReturned:
		return true
	default:
		return false
	}
}

func ValidPaymentMethod(s string) bool {
	switch PaymentMethod(s) {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodEwallet:
		return true
	default:
		return false
	}
}
