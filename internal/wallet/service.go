package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/internal/users"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Balances is a point-in-time wallet snapshot.
type Balances struct {
	UserID               uuid.UUID `json:"user_id"`
	AvailableBalanceKobo int64     `json:"available_balance_kobo"`
	PendingBalanceKobo   int64     `json:"pending_balance_kobo"`
}

// Service exposes wallet reads and withdrawals. All other balance movement
// happens through checkout, settlement, and dispute resolution.
type Service interface {
	GetBalances(ctx context.Context, userID uuid.UUID) (*Balances, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amountKobo int64) (*models.LedgerEntry, error)
	ListLedger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
}

type service struct {
	tx     txRunner
	users  users.Repository
	ledger ledger.Service
}

// NewService builds the wallet service.
func NewService(tx txRunner, usersRepo users.Repository, ledgerSvc ledger.Service) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{tx: tx, users: usersRepo, ledger: ledgerSvc}, nil
}

func (s *service) GetBalances(ctx context.Context, userID uuid.UUID) (*Balances, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return &Balances{
		UserID:               user.ID,
		AvailableBalanceKobo: user.AvailableBalanceKobo,
		PendingBalanceKobo:   user.PendingBalanceKobo,
	}, nil
}

func (s *service) Withdraw(ctx context.Context, userID uuid.UUID, amountKobo int64) (*models.LedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if amountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}

	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Type:        enums.LedgerEntryTypeWithdrawal,
			AmountKobo:  amountKobo,
			Description: "wallet withdrawal",
			Reference:   fmt.Sprintf("withdraw:%s", uuid.New()),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListLedger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.ledger.ListPageByUser(ctx, userID, params)
}
