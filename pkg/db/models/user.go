package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/pkg/enums"
)

// User is a marketplace participant. Wallet balances are denormalized here
// for read performance; the ledger remains the source of truth.
type User struct {
	ID                   uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                 string         `gorm:"column:name;not null"`
	Email                string         `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash         string         `gorm:"column:password_hash;not null"`
	Role                 enums.UserRole `gorm:"column:role;type:user_role;not null"`
	AvailableBalanceKobo int64          `gorm:"column:available_balance_kobo;not null;default:0"`
	PendingBalanceKobo   int64          `gorm:"column:pending_balance_kobo;not null;default:0"`
	PenaltyPoints        int            `gorm:"column:penalty_points;not null;default:0"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
