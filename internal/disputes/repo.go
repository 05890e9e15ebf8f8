package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	"github.com/batahq/bata-backend/pkg/types"
)

var activeStatuses = []enums.DisputeStatus{
	enums.DisputeStatusOpen,
	enums.DisputeStatusUnderReview,
}

// Repository manages dispute persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	// LockByID loads the dispute under a row lock for resolution.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	// ActiveExists reports whether the order carries a non-terminal
	// dispute, optionally inside the caller's transaction.
	ActiveExists(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	ExistsByOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	// ResolveGuarded finalizes the dispute only while it is still active.
	// Returns rows affected so callers can detect a lost race.
	ResolveGuarded(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	CreateMessage(ctx context.Context, message *models.DisputeMessage) (*models.DisputeMessage, error)
	AppendEvidence(ctx context.Context, id uuid.UUID, column string, evidence types.EvidenceList) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error) {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		return nil, err
	}
	return dispute, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&dispute, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var dispute models.Dispute
	if err := query.First(&dispute, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, activeStatuses).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// ActiveExists satisfies the settlement engine's dispute check.
func (r *repository) ActiveExists(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ? AND status IN ?", orderID, activeStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ExistsByOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&disputes).Error
	return disputes, err
}

func (r *repository) ResolveGuarded(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.DisputeMessage) (*models.DisputeMessage, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *repository) AppendEvidence(ctx context.Context, id uuid.UUID, column string, evidence types.EvidenceList) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", id).
		Update(column, evidence).Error
}
