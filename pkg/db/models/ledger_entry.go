package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/pkg/enums"
)

// LedgerEntry records one immutable balance-affecting event. Reference is
// unique per logical event so a retried settlement cannot double-post.
type LedgerEntry struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID           *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	Type              enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	AmountKobo        int64                 `gorm:"column:amount_kobo;not null"`
	Description       string                `gorm:"column:description;not null"`
	Reference         string                `gorm:"column:reference;not null;uniqueIndex"`
	BalanceBeforeKobo int64                 `gorm:"column:balance_before_kobo;not null"`
	BalanceAfterKobo  int64                 `gorm:"column:balance_after_kobo;not null"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}
