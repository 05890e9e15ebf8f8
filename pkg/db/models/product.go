package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a seller listing. Checkout captures its price into order line
// items; later settlement never re-reads it.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Category  string    `gorm:"column:category;not null"`
	PriceKobo int64     `gorm:"column:price_kobo;not null"`
	StockQty  int       `gorm:"column:stock_qty;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
