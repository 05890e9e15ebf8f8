package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots one cart line at checkout time.
type OrderLineItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name          string    `gorm:"column:name;not null"`
	Category      string    `gorm:"column:category;not null"`
	UnitPriceKobo int64     `gorm:"column:unit_price_kobo;not null"`
	Qty           int       `gorm:"column:qty;not null"`
	SubtotalKobo  int64     `gorm:"column:subtotal_kobo;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
