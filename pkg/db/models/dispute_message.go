package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/pkg/enums"
)

// DisputeMessage is one append-only entry in a dispute thread.
type DisputeMessage struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DisputeID  uuid.UUID           `gorm:"column:dispute_id;type:uuid;not null;index"`
	SenderID   uuid.UUID           `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole enums.DisputeSender `gorm:"column:sender_role;type:dispute_sender;not null"`
	Body       string              `gorm:"column:body;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}
