package model

import "time"

// 注文の明細。価格は注文時点のスナップショットで、以後再計算しない。
type OrderItem struct {
	ID                  int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64       `gorm:"not null;index" json:"order_id"`
	ProductID           int64       `gorm:"not null;index" json:"product_id"`
	VariantSKU          string      `gorm:"type:varchar(64);not null;index" json:"variant_sku"`
	ProductNameSnapshot string      `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64       `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64       `gorm:"not null" json:"quantity"`
	Status              OrderStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt           time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
}
