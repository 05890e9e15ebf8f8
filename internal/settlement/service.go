package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/internal/orders"
	"github.com/batahq/bata-backend/pkg/config"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// disputeChecker reports whether an order carries a non-terminal dispute.
type disputeChecker interface {
	ActiveExists(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// Engine releases escrowed funds exactly once per order. Every money leg is
// a ledger entry with an order-scoped reference, so a replayed release fails
// on the reference uniqueness instead of paying twice.
type Engine interface {
	// ConfirmDelivery is the buyer's settlement trigger.
	ConfirmDelivery(ctx context.Context, orderID, actorID uuid.UUID, actorRole enums.UserRole) (*models.Order, error)
	// AutoConfirm settles a delivered order whose buyer never confirmed.
	// Returns false without error when the order is no longer settleable.
	AutoConfirm(ctx context.Context, orderID uuid.UUID) (bool, error)
	// ReleaseForResolution executes the money outcome of a dispute
	// resolution inside the caller's transaction.
	ReleaseForResolution(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, refundKobo int64, refPrefix string) error
}

type engine struct {
	tx       txRunner
	orders   orders.Repository
	ledger   ledger.Service
	disputes disputeChecker
	platform config.PlatformConfig
}

// NewEngine wires the settlement engine.
func NewEngine(
	tx txRunner,
	ordersRepo orders.Repository,
	ledgerSvc ledger.Service,
	disputes disputeChecker,
	platform config.PlatformConfig,
) (Engine, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if disputes == nil {
		return nil, fmt.Errorf("dispute checker required")
	}
	if platform.AccountID == uuid.Nil {
		return nil, fmt.Errorf("platform account id required")
	}
	return &engine{
		tx:       tx,
		orders:   ordersRepo,
		ledger:   ledgerSvc,
		disputes: disputes,
		platform: platform,
	}, nil
}

func (e *engine) ConfirmDelivery(ctx context.Context, orderID, actorID uuid.UUID, actorRole enums.UserRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var result *models.Order
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.orders.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if actorRole != enums.UserRoleAdmin && order.BuyerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may confirm delivery")
		}
		if order.Status == enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already settled")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.Newf(pkgerrors.CodeNotSettleable, "order in status %s cannot be settled", order.Status).
				WithDetails(map[string]any{"status": order.Status})
		}

		active, err := e.disputes.ActiveExists(ctx, tx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check disputes")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeNotSettleable, "an open dispute suspends settlement for this order")
		}

		if err := e.settleDelivered(ctx, tx, repo, order, 0, fmt.Sprintf("settlement:%s", order.ID)); err != nil {
			return err
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

func (e *engine) AutoConfirm(ctx context.Context, orderID uuid.UUID) (bool, error) {
	settled := false
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.orders.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		if order.Status != enums.OrderStatusDelivered {
			return nil
		}
		active, err := e.disputes.ActiveExists(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if active {
			return nil
		}
		if err := e.settleDelivered(ctx, tx, repo, order, 0, fmt.Sprintf("settlement:%s", order.ID)); err != nil {
			return err
		}
		settled = true
		return nil
	})
	return settled, err
}

func (e *engine) ReleaseForResolution(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, refundKobo int64, refPrefix string) error {
	repo := e.orders.WithTx(tx)
	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if refundKobo < 0 || refundKobo > order.TotalAmountKobo {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "refund must be between 0 and %d kobo", order.TotalAmountKobo)
	}

	switch order.Status {
	case enums.OrderStatusCompleted:
		// Escrow is already released, so a refund claws back from the
		// seller's settled balance instead of the waterfall.
		if refundKobo == 0 {
			return nil
		}
		return e.clawback(ctx, tx, order, refundKobo, refPrefix)
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeNotSettleable, "cancelled orders hold no escrow")
	case enums.OrderStatusDelivered:
		return e.settleDelivered(ctx, tx, repo, order, refundKobo, refPrefix)
	default:
		// The order never reached the buyer. The refund is honored and
		// the order closes as cancelled.
		return e.settleUndelivered(ctx, tx, repo, order, refundKobo, refPrefix)
	}
}

// settleDelivered claims the DELIVERED order and pays every leg of the split.
func (e *engine) settleDelivered(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, refundKobo int64, refPrefix string) error {
	updates := map[string]any{"status": enums.OrderStatusCompleted}
	if order.CompletedAt == nil {
		updates["completed_at"] = gorm.Expr("CURRENT_TIMESTAMP")
	}
	rows, err := repo.UpdateGuarded(ctx, order.ID, enums.OrderStatusDelivered, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already settled")
	}
	return e.payLegs(ctx, tx, order, refundKobo, refPrefix, true)
}

// settleUndelivered closes a pre-delivery order during dispute resolution.
// The rider pot was never earned, so it returns to the platform.
func (e *engine) settleUndelivered(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, refundKobo int64, refPrefix string) error {
	updates := map[string]any{"status": enums.OrderStatusCancelled}
	if order.CancelledAt == nil {
		updates["cancelled_at"] = gorm.Expr("CURRENT_TIMESTAMP")
	}
	rows, err := repo.UpdateGuarded(ctx, order.ID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
	}
	return e.payLegs(ctx, tx, order, refundKobo, refPrefix, false)
}

// payLegs distributes the buyer's payment. A refund is funded in waterfall
// order: seller escrow first, then the platform share, then the rider pot.
// Whatever each pool keeps after funding the refund is paid out, so the legs
// always sum to the order total.
func (e *engine) payLegs(ctx context.Context, tx *gorm.DB, order *models.Order, refundKobo int64, refPrefix string, delivered bool) error {
	escrow := order.SellerEscrowKobo
	riderPot := order.RiderPayoutKobo
	platformShare := order.PlatformCommissionKobo

	fromEscrow := min64(refundKobo, escrow)
	fromPlatform := min64(refundKobo-fromEscrow, platformShare)
	fromRider := refundKobo - fromEscrow - fromPlatform

	orderID := order.ID
	if refundKobo > 0 {
		if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      order.BuyerID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeCredit,
			AmountKobo:  refundKobo,
			Description: fmt.Sprintf("refund for order %s", order.OrderNumber),
			Reference:   fmt.Sprintf("%s:buyer_refund", refPrefix),
		}); err != nil {
			return err
		}
	}

	if sellerRelease := escrow - fromEscrow; sellerRelease > 0 {
		if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      order.SellerID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeCredit,
			AmountKobo:  sellerRelease,
			Description: fmt.Sprintf("escrow release for order %s", order.OrderNumber),
			Reference:   fmt.Sprintf("%s:seller_release", refPrefix),
		}); err != nil {
			return err
		}
	}
	if escrow > 0 {
		if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      order.SellerID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeEscrowRelease,
			AmountKobo:  escrow,
			Description: fmt.Sprintf("escrow hold released for order %s", order.OrderNumber),
			Reference:   fmt.Sprintf("%s:escrow_release", refPrefix),
		}); err != nil {
			return err
		}
	}

	riderEarned := delivered && order.RiderID != nil
	riderLeg := riderPot - fromRider
	if riderEarned && riderLeg > 0 {
		if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      *order.RiderID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeCredit,
			AmountKobo:  riderLeg,
			Description: fmt.Sprintf("delivery payout for order %s", order.OrderNumber),
			Reference:   fmt.Sprintf("%s:rider_payout", refPrefix),
		}); err != nil {
			return err
		}
		riderLeg = 0
	}

	platformLeg := platformShare - fromPlatform + riderLeg
	if platformLeg > 0 {
		if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
			UserID:      e.platform.AccountID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeCredit,
			AmountKobo:  platformLeg,
			Description: fmt.Sprintf("platform commission for order %s", order.OrderNumber),
			Reference:   fmt.Sprintf("%s:platform_commission", refPrefix),
		}); err != nil {
			return err
		}
	}
	return nil
}

// clawback reverses settled funds from the seller to the buyer after the
// order has already completed.
func (e *engine) clawback(ctx context.Context, tx *gorm.DB, order *models.Order, refundKobo int64, refPrefix string) error {
	orderID := order.ID
	if _, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      order.BuyerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeCredit,
		AmountKobo:  refundKobo,
		Description: fmt.Sprintf("refund for order %s", order.OrderNumber),
		Reference:   fmt.Sprintf("%s:buyer_refund", refPrefix),
	}); err != nil {
		return err
	}
	_, err := e.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      order.SellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeDebit,
		AmountKobo:  refundKobo,
		Description: fmt.Sprintf("refund clawback for order %s", order.OrderNumber),
		Reference:   fmt.Sprintf("%s:seller_clawback", refPrefix),
	})
	return err
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
