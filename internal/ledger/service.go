package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/users"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/pagination"
)

// AppendInput captures one balance-affecting event. Reference must be unique
// per logical event; a replayed append with the same reference fails instead
// of double-posting.
type AppendInput struct {
	UserID      uuid.UUID
	OrderID     *uuid.UUID
	Type        enums.LedgerEntryType
	AmountKobo  int64
	Description string
	Reference   string
}

// Service appends ledger entries with their paired wallet mutation. Append
// must run inside the caller's transaction so the entry and the balance
// change commit together.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
	ListPageByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo  Repository
	users users.Repository
}

// NewService wires a ledger service with the provided repositories.
func NewService(repo Repository, usersRepo users.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, users: usersRepo}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger append requires a transaction")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger amount must be positive")
	}
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger reference required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid ledger entry type %q", input.Type)
	}

	usersRepo := s.users.WithTx(tx)
	user, err := usersRepo.LockForUpdate(ctx, input.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user balances")
	}

	available := user.AvailableBalanceKobo
	pending := user.PendingBalanceKobo
	var before, after int64

	switch input.Type {
	case enums.LedgerEntryTypeCredit:
		before = available
		after = before + input.AmountKobo
		available = after
	case enums.LedgerEntryTypeDebit:
		before = available
		after = before - input.AmountKobo
		available = after
	case enums.LedgerEntryTypeWithdrawal:
		before = available
		if before < input.AmountKobo {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "withdrawal exceeds available balance").
				WithDetails(map[string]any{
					"available_kobo": before,
					"requested_kobo": input.AmountKobo,
				})
		}
		after = before - input.AmountKobo
		available = after
	case enums.LedgerEntryTypeEscrow:
		before = pending
		after = before + input.AmountKobo
		pending = after
	case enums.LedgerEntryTypeEscrowRelease:
		before = pending
		if before < input.AmountKobo {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "pending balance below escrowed amount").
				WithDetails(map[string]any{
					"pending_kobo":   before,
					"requested_kobo": input.AmountKobo,
				})
		}
		after = before - input.AmountKobo
		pending = after
	}

	entry := &models.LedgerEntry{
		UserID:            input.UserID,
		OrderID:           input.OrderID,
		Type:              input.Type,
		AmountKobo:        input.AmountKobo,
		Description:       input.Description,
		Reference:         input.Reference,
		BalanceBeforeKobo: before,
		BalanceAfterKobo:  after,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger reference already recorded").
				WithDetails(map[string]any{"reference": input.Reference})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}

	if err := usersRepo.UpdateBalances(ctx, input.UserID, available, pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply wallet balances")
	}
	return entry, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListPageByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, next, err := s.repo.ListPageByUser(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger page")
	}
	return entries, next, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListByOrder(ctx, orderID)
}

// Replay folds entries in createdAt order and returns the balances they
// reproduce. CREDIT adds to available, DEBIT and WITHDRAWAL subtract from
// it; ESCROW adds to pending and ESCROW_RELEASE subtracts. For a consistent
// ledger both results match the balanceAfter of the latest entry on each
// track.
func Replay(entries []models.LedgerEntry) (availableKobo, pendingKobo int64) {
	for _, entry := range entries {
		switch entry.Type {
		case enums.LedgerEntryTypeCredit:
			availableKobo += entry.AmountKobo
		case enums.LedgerEntryTypeDebit, enums.LedgerEntryTypeWithdrawal:
			availableKobo -= entry.AmountKobo
		case enums.LedgerEntryTypeEscrow:
			pendingKobo += entry.AmountKobo
		case enums.LedgerEntryTypeEscrowRelease:
			pendingKobo -= entry.AmountKobo
		}
	}
	return availableKobo, pendingKobo
}
