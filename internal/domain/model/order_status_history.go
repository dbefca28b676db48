package model

import "time"

// 注文の状態変更の追記専用ログ。既存行は編集・削除しない。
type OrderStatusHistory struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"not null;index" json:"order_id"`
	Status    string    `gorm:"type:varchar(30);not null" json:"status"`
	Note      string    `gorm:"type:varchar(255)" json:"note"`
	UpdatedBy *int64    `json:"updated_by,omitempty"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
