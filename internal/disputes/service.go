package disputes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/orders"
	"github.com/batahq/bata-backend/internal/settlement"
	"github.com/batahq/bata-backend/internal/users"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

// DisputeWindow is how long after fulfillment a buyer may open a dispute.
const DisputeWindow = 7 * 24 * time.Hour

// PenaltyPoints added to a party flagged during resolution.
const PenaltyPoints = 1

var disputableStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusProcessing:    {},
	enums.OrderStatusShipped:       {},
	enums.OrderStatusRiderAssigned: {},
	enums.OrderStatusPickedUp:      {},
	enums.OrderStatusOnTheWay:      {},
	enums.OrderStatusDelivered:     {},
	enums.OrderStatusCompleted:     {},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the dispute lifecycle from opening through resolution.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID, actorID uuid.UUID, actorRole enums.UserRole) (*models.Dispute, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	PostMessage(ctx context.Context, input MessageInput) (*models.DisputeMessage, error)
	SubmitEvidence(ctx context.Context, input EvidenceInput) (*models.Dispute, error)
	StartReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
}

// OpenInput attaches a new dispute to an order.
type OpenInput struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Reason   string   `validate:"required"`
	Evidence []string `validate:"dive,required"`
}

// MessageInput appends one message to an active dispute thread.
type MessageInput struct {
	DisputeID uuid.UUID
	SenderID  uuid.UUID
	Role      enums.UserRole
	Body      string `validate:"required"`
}

// EvidenceInput adds evidence items for the sender's side.
type EvidenceInput struct {
	DisputeID uuid.UUID
	SenderID  uuid.UUID
	Items     []string `validate:"required,min=1,dive,required"`
}

// ResolveInput is the administrative resolution of a dispute.
type ResolveInput struct {
	DisputeID      uuid.UUID
	AdminID        uuid.UUID
	TargetStatus   enums.DisputeStatus
	Resolution     string
	RefundKobo     *int64
	PenalizeBuyer  bool
	PenalizeSeller bool
	PenaltyReason  string
}

type service struct {
	tx         txRunner
	repo       Repository
	orders     orders.Repository
	users      users.Repository
	settlement settlement.Engine
}

// NewService wires the dispute controller.
func NewService(
	tx txRunner,
	repo Repository,
	ordersRepo orders.Repository,
	usersRepo users.Repository,
	engine settlement.Engine,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("settlement engine required")
	}
	return &service{tx: tx, repo: repo, orders: ordersRepo, users: usersRepo, settlement: engine}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var result *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.LockByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may open a dispute")
		}
		if err := s.checkEligibility(ctx, repo, order); err != nil {
			return err
		}

		dispute := &models.Dispute{
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			SellerID:      order.SellerID,
			Status:        enums.DisputeStatusOpen,
			Reason:        strings.TrimSpace(input.Reason),
			BuyerEvidence: input.Evidence,
		}
		result, err = repo.Create(ctx, dispute)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) checkEligibility(ctx context.Context, repo Repository, order *models.Order) error {
	exists, err := repo.ExistsByOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing disputes")
	}
	if exists {
		return pkgerrors.New(pkgerrors.CodeDisputeIneligible, "order already has a dispute").
			WithDetails(map[string]any{"reason": "already_disputed"})
	}
	if _, ok := disputableStatuses[order.Status]; !ok {
		return pkgerrors.Newf(pkgerrors.CodeDisputeIneligible, "order in status %s cannot be disputed", order.Status).
			WithDetails(map[string]any{"reason": "wrong_status", "status": order.Status})
	}
	if order.Status == enums.OrderStatusDelivered || order.Status == enums.OrderStatusCompleted {
		anchor := order.FulfillmentTime()
		if anchor == nil {
			return pkgerrors.New(pkgerrors.CodeDisputeIneligible, "order has no fulfillment timestamp").
				WithDetails(map[string]any{"reason": "wrong_status"})
		}
		if time.Now().UTC().After(anchor.Add(DisputeWindow)) {
			return pkgerrors.New(pkgerrors.CodeDisputeIneligible, "dispute window has expired").
				WithDetails(map[string]any{
					"reason":    "window_expired",
					"closed_at": anchor.Add(DisputeWindow),
				})
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, disputeID, actorID uuid.UUID, actorRole enums.UserRole) (*models.Dispute, error) {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if actorRole != enums.UserRoleAdmin && dispute.BuyerID != actorID && dispute.SellerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dispute belongs to another order")
	}
	return dispute, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListByParty(ctx, userID, limit, offset)
}

func (s *service) PostMessage(ctx context.Context, input MessageInput) (*models.DisputeMessage, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	dispute, err := s.Get(ctx, input.DisputeID, input.SenderID, input.Role)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeDisputeTerminal, "dispute is already resolved")
	}

	senderRole, err := senderRoleFor(dispute, input.SenderID, input.Role)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateMessage(ctx, &models.DisputeMessage{
		DisputeID:  dispute.ID,
		SenderID:   input.SenderID,
		SenderRole: senderRole,
		Body:       strings.TrimSpace(input.Body),
	})
}

func (s *service) SubmitEvidence(ctx context.Context, input EvidenceInput) (*models.Dispute, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence items required")
	}
	dispute, err := s.Get(ctx, input.DisputeID, input.SenderID, "")
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeDisputeTerminal, "dispute is already resolved")
	}

	var column string
	switch input.SenderID {
	case dispute.BuyerID:
		column = "buyer_evidence"
		dispute.BuyerEvidence = dispute.BuyerEvidence.Append(input.Items...)
		err = s.repo.AppendEvidence(ctx, dispute.ID, column, dispute.BuyerEvidence)
	case dispute.SellerID:
		column = "seller_evidence"
		dispute.SellerEvidence = dispute.SellerEvidence.Append(input.Items...)
		err = s.repo.AppendEvidence(ctx, dispute.ID, column, dispute.SellerEvidence)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only dispute parties may submit evidence")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append evidence")
	}
	return dispute, nil
}

func (s *service) StartReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.Get(ctx, disputeID, adminID, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeDisputeTerminal, "dispute is already resolved")
	}
	rows, err := s.repo.ResolveGuarded(ctx, dispute.ID, map[string]any{
		"status": enums.DisputeStatusUnderReview,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark under review")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "dispute changed concurrently")
	}
	dispute.Status = enums.DisputeStatusUnderReview
	return dispute, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if !input.TargetStatus.IsValid() || !input.TargetStatus.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%q is not a terminal dispute status", input.TargetStatus)
	}
	if strings.TrimSpace(input.Resolution) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution text required")
	}
	if input.TargetStatus.ImpliesRefund() && input.RefundKobo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount required for this resolution")
	}
	var refund int64
	if input.RefundKobo != nil {
		refund = *input.RefundKobo
		if refund < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
		}
	}
	if input.PenalizeBuyer || input.PenalizeSeller {
		if strings.TrimSpace(input.PenaltyReason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "penalty reason required")
		}
	}

	var result *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := repo.LockByID(ctx, input.DisputeID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
		}
		if dispute.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeDisputeTerminal, "dispute is already resolved")
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if refund > order.TotalAmountKobo {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "refund exceeds order total of %d kobo", order.TotalAmountKobo)
		}

		now := time.Now().UTC()
		resolution := strings.TrimSpace(input.Resolution)
		updates := map[string]any{
			"status":      input.TargetStatus,
			"resolution":  resolution,
			"resolved_by": input.AdminID,
			"resolved_at": now,
		}
		if input.RefundKobo != nil {
			updates["refund_amount_kobo"] = refund
		}
		rows, err := repo.ResolveGuarded(ctx, dispute.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute changed concurrently")
		}

		if err := s.applyPenalties(ctx, tx, dispute, input); err != nil {
			return err
		}
		if err := s.applyMoneyOutcome(ctx, tx, dispute, order, input.TargetStatus, refund); err != nil {
			return err
		}

		dispute.Status = input.TargetStatus
		dispute.Resolution = &resolution
		dispute.ResolvedBy = &input.AdminID
		dispute.ResolvedAt = &now
		if input.RefundKobo != nil {
			dispute.RefundAmountKobo = &refund
		}
		result = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) applyPenalties(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, input ResolveInput) error {
	usersRepo := s.users.WithTx(tx)
	if input.PenalizeBuyer {
		if err := usersRepo.AddPenaltyPoints(ctx, dispute.BuyerID, PenaltyPoints); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "penalize buyer")
		}
	}
	if input.PenalizeSeller {
		if err := usersRepo.AddPenaltyPoints(ctx, dispute.SellerID, PenaltyPoints); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "penalize seller")
		}
	}
	return nil
}

// applyMoneyOutcome maps the terminal status onto exactly one settlement
// action. Seller-favor outcomes only release escrow when the order actually
// reached the buyer; otherwise the normal lifecycle continues.
func (s *service) applyMoneyOutcome(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, order *models.Order, target enums.DisputeStatus, refund int64) error {
	refPrefix := fmt.Sprintf("dispute:%s", dispute.ID)
	switch {
	case target.ImpliesRefund():
		return s.settlement.ReleaseForResolution(ctx, tx, order.ID, refund, refPrefix)
	case order.Status == enums.OrderStatusDelivered:
		return s.settlement.ReleaseForResolution(ctx, tx, order.ID, 0, refPrefix)
	default:
		return nil
	}
}

func senderRoleFor(dispute *models.Dispute, senderID uuid.UUID, role enums.UserRole) (enums.DisputeSender, error) {
	switch {
	case role == enums.UserRoleAdmin:
		return enums.DisputeSenderAdmin, nil
	case senderID == dispute.BuyerID:
		return enums.DisputeSenderBuyer, nil
	case senderID == dispute.SellerID:
		return enums.DisputeSenderSeller, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "only dispute parties may post messages")
	}
}
