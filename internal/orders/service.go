package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives order lifecycle transitions.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, party uuid.UUID, role enums.UserRole, limit, offset int) ([]models.Order, error)
}

// TransitionInput carries one requested lifecycle move.
type TransitionInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	NewStatus enums.OrderStatus
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger ledger.Service
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, tx: tx, ledger: ledgerSvc}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.NewStatus)
	}
	if input.NewStatus == enums.OrderStatusCompleted && input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery is confirmed through the settlement endpoint")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !CanTransition(order.Status, input.NewStatus) {
			return pkgerrors.Newf(pkgerrors.CodeIllegalTransition,
				"cannot move order from %s to %s", order.Status, input.NewStatus).
				WithDetails(map[string]any{
					"current":   order.Status,
					"requested": input.NewStatus,
				})
		}

		if err := s.authorize(order, input); err != nil {
			return err
		}

		updates := map[string]any{"status": input.NewStatus}
		now := time.Now().UTC()
		stampOnce(order, input, updates, now)

		rows, err := repo.UpdateGuarded(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		if input.NewStatus == enums.OrderStatusCancelled && order.IsPaid {
			if err := s.refundCancelled(ctx, tx, order); err != nil {
				return err
			}
		}

		result, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) authorize(order *models.Order, input TransitionInput) error {
	if input.ActorRole == enums.UserRoleAdmin {
		return nil
	}
	if !roleMayDrive(input.ActorRole, order.Status, input.NewStatus) {
		return pkgerrors.Newf(pkgerrors.CodeForbidden,
			"%s may not move order to %s", input.ActorRole, input.NewStatus)
	}

	switch input.ActorRole {
	case enums.UserRoleSeller:
		if order.SellerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
	case enums.UserRoleBuyer:
		if order.BuyerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	case enums.UserRoleRider:
		// Claiming is open to any rider; every later step must come from
		// the rider already on the order.
		if input.NewStatus != enums.OrderStatusRiderAssigned {
			if order.RiderID == nil || *order.RiderID != input.ActorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another rider")
			}
		}
	}
	return nil
}

func stampOnce(order *models.Order, input TransitionInput, updates map[string]any, now time.Time) {
	switch input.NewStatus {
	case enums.OrderStatusRiderAssigned:
		if order.RiderAssignedAt == nil {
			updates["rider_assigned_at"] = now
		}
		if order.RiderID == nil && input.ActorRole == enums.UserRoleRider {
			updates["rider_id"] = input.ActorID
		}
	case enums.OrderStatusPickedUp:
		if order.PickedUpAt == nil {
			updates["picked_up_at"] = now
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
		}
	case enums.OrderStatusCompleted:
		if order.CompletedAt == nil {
			updates["completed_at"] = now
		}
	case enums.OrderStatusCancelled:
		if order.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
	}
}

// refundCancelled reverses the checkout money movement for a paid order:
// the buyer gets the full amount back and the seller's escrow is unwound.
// Cancellation is unreachable from DELIVERED/COMPLETED, so no settlement
// credit can exist yet.
func (s *service) refundCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	orderID := order.ID
	_, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      order.BuyerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeCredit,
		AmountKobo:  order.TotalAmountKobo,
		Description: fmt.Sprintf("refund for cancelled order %s", order.OrderNumber),
		Reference:   fmt.Sprintf("cancel:%s:buyer_refund", orderID),
	})
	if err != nil {
		return err
	}
	if order.SellerEscrowKobo == 0 {
		return nil
	}
	_, err = s.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      order.SellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeEscrowRelease,
		AmountKobo:  order.SellerEscrowKobo,
		Description: fmt.Sprintf("escrow hold released for cancelled order %s", order.OrderNumber),
		Reference:   fmt.Sprintf("cancel:%s:escrow_release", orderID),
	})
	return err
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, party uuid.UUID, role enums.UserRole, limit, offset int) ([]models.Order, error) {
	if party == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	return s.repo.ListByParty(ctx, party, role, limit, offset)
}
