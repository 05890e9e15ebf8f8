package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/pagination"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  amount_kobo INTEGER NOT NULL,
  description TEXT NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  balance_before_kobo INTEGER NOT NULL,
  balance_after_kobo INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func createEntry(t *testing.T, db *gorm.DB, userID uuid.UUID, orderID *uuid.UUID, kind enums.LedgerEntryType, amount int64, created time.Time) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		ID:               uuid.New(),
		UserID:           userID,
		OrderID:          orderID,
		Type:             kind,
		AmountKobo:       amount,
		Description:      "test entry",
		Reference:        fmt.Sprintf("test:%s", uuid.New()),
		BalanceAfterKobo: amount,
		CreatedAt:        created,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

// postEntry writes an entry with explicit running balances, the way Append
// records them in production.
func postEntry(t *testing.T, db *gorm.DB, userID uuid.UUID, kind enums.LedgerEntryType, amount, before, after int64, reference string, created time.Time) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		ID:                uuid.New(),
		UserID:            userID,
		Type:              kind,
		AmountKobo:        amount,
		Description:       "test entry",
		Reference:         reference,
		BalanceBeforeKobo: before,
		BalanceAfterKobo:  after,
		CreatedAt:         created,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestRepositoryListPageByUser_pagination(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()

	oldest := createEntry(t, db, userID, nil, enums.LedgerEntryTypeCredit, 1000, now.Add(-2*time.Hour))
	middle := createEntry(t, db, userID, nil, enums.LedgerEntryTypeDebit, 400, now.Add(-time.Hour))
	newest := createEntry(t, db, userID, nil, enums.LedgerEntryTypeCredit, 2500, now)
	createEntry(t, db, other, nil, enums.LedgerEntryTypeCredit, 9900, now)

	first, cursor, err := repo.ListPageByUser(context.Background(), userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, newest.ID, first[0].ID)
	assert.Equal(t, middle.ID, first[1].ID)

	second, next, err := repo.ListPageByUser(context.Background(), userID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, oldest.ID, second[0].ID)
	assert.Empty(t, next)
}

func TestRepositoryListPageByUser_badCursor(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	_, _, err := repo.ListPageByUser(context.Background(), uuid.New(), pagination.Params{Limit: 10, Cursor: "not-a-cursor"})
	require.Error(t, err)
}

func TestRepositoryListByOrder(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	orderID := uuid.New()
	seller := uuid.New()
	buyer := uuid.New()
	now := time.Now().UTC()

	createEntry(t, db, buyer, &orderID, enums.LedgerEntryTypeDebit, 5000, now.Add(-time.Minute))
	createEntry(t, db, seller, &orderID, enums.LedgerEntryTypeEscrow, 4500, now)
	createEntry(t, db, seller, nil, enums.LedgerEntryTypeCredit, 100, now)

	entries, err := repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.LedgerEntryTypeDebit, entries[0].Type)
	assert.Equal(t, enums.LedgerEntryTypeEscrow, entries[1].Type)
}

func TestRepositoryExistsByReference(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	entry := createEntry(t, db, uuid.New(), nil, enums.LedgerEntryTypeCredit, 700, time.Now().UTC())

	found, err := repo.ExistsByReference(context.Background(), entry.Reference)
	require.NoError(t, err)
	assert.True(t, found)

	missing, err := repo.ExistsByReference(context.Background(), "settlement:never-posted")
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestRepositoryCreateDuplicateReference(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	first := createEntry(t, db, uuid.New(), nil, enums.LedgerEntryTypeCredit, 700, time.Now().UTC())

	dup := &models.LedgerEntry{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Type:             enums.LedgerEntryTypeCredit,
		AmountKobo:       700,
		Description:      "test entry",
		Reference:        first.Reference,
		BalanceAfterKobo: 700,
		CreatedAt:        time.Now().UTC(),
	}
	err := repo.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUniqueViolation(err))
}

// A seller's history through a full sale cycle plus a fresh hold: the escrow
// from the first order is released at settlement and credited to available,
// then a second order opens a new hold. Folding the entries back must land on
// the balances the last entry of each track recorded.
func TestReplayReproducesBalances(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	seller := uuid.New()
	now := time.Now().UTC()

	postEntry(t, db, seller, enums.LedgerEntryTypeEscrow, 950000, 0, 950000,
		"checkout:a:seller_escrow", now.Add(-3*time.Minute))
	postEntry(t, db, seller, enums.LedgerEntryTypeEscrowRelease, 950000, 950000, 0,
		"settle:a:escrow_release", now.Add(-2*time.Minute))
	released := postEntry(t, db, seller, enums.LedgerEntryTypeCredit, 950000, 0, 950000,
		"settle:a:seller_release", now.Add(-time.Minute))
	held := postEntry(t, db, seller, enums.LedgerEntryTypeEscrow, 120000, 0, 120000,
		"checkout:b:seller_escrow", now)

	entries, err := repo.ListByUser(context.Background(), seller)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	available, pending := Replay(entries)
	assert.Equal(t, released.BalanceAfterKobo, available)
	assert.Equal(t, held.BalanceAfterKobo, pending)
	assert.Equal(t, int64(950000), available)
	assert.Equal(t, int64(120000), pending)
}
