package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/pkg/enums"
	"github.com/batahq/bata-backend/pkg/types"
)

// Dispute is the parallel state machine attached 1:1 to an order. Once it
// reaches a terminal status the row is immutable.
type Dispute struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID          uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Status           enums.DisputeStatus `gorm:"column:status;type:dispute_status;not null;default:'OPEN'"`
	Reason           string              `gorm:"column:reason;not null"`
	BuyerEvidence    types.EvidenceList  `gorm:"column:buyer_evidence;type:jsonb;serializer:json"`
	SellerEvidence   types.EvidenceList  `gorm:"column:seller_evidence;type:jsonb;serializer:json"`
	Resolution       *string             `gorm:"column:resolution"`
	RefundAmountKobo *int64              `gorm:"column:refund_amount_kobo"`
	ResolvedBy       *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt       *time.Time          `gorm:"column:resolved_at"`
	Messages         []DisputeMessage    `gorm:"foreignKey:DisputeID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
