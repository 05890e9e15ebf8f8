package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/internal/users"
	"github.com/batahq/bata-backend/pkg/db/models"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/pagination"
)

type stubUsersRepo struct {
	user *models.User
}

func (s *stubUsersRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsersRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (s *stubUsersRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.FindByID(ctx, id)
}

func (s *stubUsersRepo) UpdateBalances(ctx context.Context, id uuid.UUID, availableKobo, pendingKobo int64) error {
	return nil
}

func (s *stubUsersRepo) AddPenaltyPoints(ctx context.Context, id uuid.UUID, points int) error {
	return nil
}

type stubLedgerService struct {
	appends []ledger.AppendInput
	err     error
}

func (s *stubLedgerService) Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.appends = append(s.appends, input)
	return &models.LedgerEntry{ID: uuid.New(), Reference: input.Reference, AmountKobo: input.AmountKobo}, nil
}

func (s *stubLedgerService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (s *stubLedgerService) ListPageByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}

func (s *stubLedgerService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestGetBalances(t *testing.T) {
	user := &models.User{ID: uuid.New(), AvailableBalanceKobo: 950000, PendingBalanceKobo: 120000}
	svc, err := NewService(stubTxRunner{}, &stubUsersRepo{user: user}, &stubLedgerService{})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	balances, err := svc.GetBalances(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if balances.AvailableBalanceKobo != 950000 || balances.PendingBalanceKobo != 120000 {
		t.Fatalf("unexpected balances %+v", balances)
	}
}

func TestWithdrawWritesLedgerEntry(t *testing.T) {
	userID := uuid.New()
	ledgerSvc := &stubLedgerService{}
	svc, _ := NewService(stubTxRunner{}, &stubUsersRepo{}, ledgerSvc)

	entry, err := svc.Withdraw(context.Background(), userID, 100000)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(ledgerSvc.appends) != 1 {
		t.Fatalf("expected one ledger append got %d", len(ledgerSvc.appends))
	}
	if !strings.HasPrefix(entry.Reference, "withdraw:") {
		t.Fatalf("unexpected reference %q", entry.Reference)
	}
}

func TestWithdrawRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := NewService(stubTxRunner{}, &stubUsersRepo{}, &stubLedgerService{})

	for _, amount := range []int64{0, -100} {
		_, err := svc.Withdraw(context.Background(), uuid.New(), amount)
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %d got %v", amount, err)
		}
	}
}

func TestWithdrawPropagatesInsufficientBalance(t *testing.T) {
	ledgerSvc := &stubLedgerService{err: pkgerrors.New(pkgerrors.CodeInsufficientBalance, "available balance too low")}
	svc, _ := NewService(stubTxRunner{}, &stubUsersRepo{}, ledgerSvc)

	_, err := svc.Withdraw(context.Background(), uuid.New(), 100000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance got %v", err)
	}
}
