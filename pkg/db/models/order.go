package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/pkg/enums"
)

// Order is one seller's portion of a checkout. The money fields are fixed at
// creation; every downstream split reads them, never live product prices.
type Order struct {
	ID                     uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber            string            `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID                uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID               uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	RiderID                *uuid.UUID        `gorm:"column:rider_id;type:uuid;index"`
	ProductPriceKobo       int64             `gorm:"column:product_price_kobo;not null"`
	DeliveryFeeKobo        int64             `gorm:"column:delivery_fee_kobo;not null"`
	PlatformCommissionKobo int64             `gorm:"column:platform_commission_kobo;not null"`
	RiderPayoutKobo        int64             `gorm:"column:rider_payout_kobo;not null"`
	SellerEscrowKobo       int64             `gorm:"column:seller_escrow_kobo;not null"`
	TotalAmountKobo        int64             `gorm:"column:total_amount_kobo;not null"`
	Status                 enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	IsPaid                 bool              `gorm:"column:is_paid;not null;default:false"`
	RiderAssignedAt        *time.Time        `gorm:"column:rider_assigned_at"`
	PickedUpAt             *time.Time        `gorm:"column:picked_up_at"`
	DeliveredAt            *time.Time        `gorm:"column:delivered_at"`
	CompletedAt            *time.Time        `gorm:"column:completed_at"`
	CancelledAt            *time.Time        `gorm:"column:cancelled_at"`
	Items                  []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// FulfillmentTime returns the canonical anchor for the dispute window.
// DeliveredAt is authoritative; CompletedAt is only a fallback for orders
// that were completed without a recorded delivery timestamp.
func (o *Order) FulfillmentTime() *time.Time {
	if o.DeliveredAt != nil {
		return o.DeliveredAt
	}
	return o.CompletedAt
}
