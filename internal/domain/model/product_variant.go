package model

import "time"

// 商品バリエーション（SKU単位で在庫と価格を持つ）
type ProductVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	SKU       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	Stock     int64     `gorm:"not null" json:"stock"`
	SoldCount int64     `gorm:"not null;default:0" json:"sold_count"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
