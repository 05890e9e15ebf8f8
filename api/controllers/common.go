package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/api/middleware"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

// actor is the authenticated identity extracted from the request context.
type actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

func actorFromRequest(r *http.Request) (actor, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	id, err := uuid.Parse(rawID)
	if err != nil {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	return actor{ID: id, Role: role}, nil
}

type lineItemResponse struct {
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	UnitPriceKobo int64     `json:"unit_price_kobo"`
	Qty           int       `json:"qty"`
	SubtotalKobo  int64     `json:"subtotal_kobo"`
}

type orderResponse struct {
	ID                     uuid.UUID          `json:"id"`
	OrderNumber            string             `json:"order_number"`
	BuyerID                uuid.UUID          `json:"buyer_id"`
	SellerID               uuid.UUID          `json:"seller_id"`
	RiderID                *uuid.UUID         `json:"rider_id,omitempty"`
	Status                 enums.OrderStatus  `json:"status"`
	IsPaid                 bool               `json:"is_paid"`
	ProductPriceKobo       int64              `json:"product_price_kobo"`
	DeliveryFeeKobo        int64              `json:"delivery_fee_kobo"`
	PlatformCommissionKobo int64              `json:"platform_commission_kobo"`
	RiderPayoutKobo        int64              `json:"rider_payout_kobo"`
	SellerEscrowKobo       int64              `json:"seller_escrow_kobo"`
	TotalAmountKobo        int64              `json:"total_amount_kobo"`
	Items                  []lineItemResponse `json:"items,omitempty"`
	RiderAssignedAt        *time.Time         `json:"rider_assigned_at,omitempty"`
	PickedUpAt             *time.Time         `json:"picked_up_at,omitempty"`
	DeliveredAt            *time.Time         `json:"delivered_at,omitempty"`
	CompletedAt            *time.Time         `json:"completed_at,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:                     order.ID,
		OrderNumber:            order.OrderNumber,
		BuyerID:                order.BuyerID,
		SellerID:               order.SellerID,
		RiderID:                order.RiderID,
		Status:                 order.Status,
		IsPaid:                 order.IsPaid,
		ProductPriceKobo:       order.ProductPriceKobo,
		DeliveryFeeKobo:        order.DeliveryFeeKobo,
		PlatformCommissionKobo: order.PlatformCommissionKobo,
		RiderPayoutKobo:        order.RiderPayoutKobo,
		SellerEscrowKobo:       order.SellerEscrowKobo,
		TotalAmountKobo:        order.TotalAmountKobo,
		RiderAssignedAt:        order.RiderAssignedAt,
		PickedUpAt:             order.PickedUpAt,
		DeliveredAt:            order.DeliveredAt,
		CompletedAt:            order.CompletedAt,
		CancelledAt:            order.CancelledAt,
		CreatedAt:              order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ProductID:     item.ProductID,
			Name:          item.Name,
			Category:      item.Category,
			UnitPriceKobo: item.UnitPriceKobo,
			Qty:           item.Qty,
			SubtotalKobo:  item.SubtotalKobo,
		})
	}
	return resp
}

func toOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}

type ledgerEntryResponse struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           *uuid.UUID            `json:"order_id,omitempty"`
	Type              enums.LedgerEntryType `json:"type"`
	AmountKobo        int64                 `json:"amount_kobo"`
	Description       string                `json:"description"`
	Reference         string                `json:"reference"`
	BalanceBeforeKobo int64                 `json:"balance_before_kobo"`
	BalanceAfterKobo  int64                 `json:"balance_after_kobo"`
	CreatedAt         time.Time             `json:"created_at"`
}

func toLedgerEntryResponses(entries []models.LedgerEntry) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ledgerEntryResponse{
			ID:                entry.ID,
			OrderID:           entry.OrderID,
			Type:              entry.Type,
			AmountKobo:        entry.AmountKobo,
			Description:       entry.Description,
			Reference:         entry.Reference,
			BalanceBeforeKobo: entry.BalanceBeforeKobo,
			BalanceAfterKobo:  entry.BalanceAfterKobo,
			CreatedAt:         entry.CreatedAt,
		})
	}
	return out
}

type disputeMessageResponse struct {
	ID         uuid.UUID           `json:"id"`
	SenderID   uuid.UUID           `json:"sender_id"`
	SenderRole enums.DisputeSender `json:"sender_role"`
	Body       string              `json:"body"`
	CreatedAt  time.Time           `json:"created_at"`
}

type disputeResponse struct {
	ID               uuid.UUID                `json:"id"`
	OrderID          uuid.UUID                `json:"order_id"`
	BuyerID          uuid.UUID                `json:"buyer_id"`
	SellerID         uuid.UUID                `json:"seller_id"`
	Status           enums.DisputeStatus      `json:"status"`
	Reason           string                   `json:"reason"`
	BuyerEvidence    []string                 `json:"buyer_evidence,omitempty"`
	SellerEvidence   []string                 `json:"seller_evidence,omitempty"`
	Resolution       *string                  `json:"resolution,omitempty"`
	RefundAmountKobo *int64                   `json:"refund_amount_kobo,omitempty"`
	ResolvedBy       *uuid.UUID               `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time               `json:"resolved_at,omitempty"`
	Messages         []disputeMessageResponse `json:"messages,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}

func toDisputeResponse(dispute *models.Dispute) disputeResponse {
	resp := disputeResponse{
		ID:               dispute.ID,
		OrderID:          dispute.OrderID,
		BuyerID:          dispute.BuyerID,
		SellerID:         dispute.SellerID,
		Status:           dispute.Status,
		Reason:           dispute.Reason,
		BuyerEvidence:    dispute.BuyerEvidence,
		SellerEvidence:   dispute.SellerEvidence,
		Resolution:       dispute.Resolution,
		RefundAmountKobo: dispute.RefundAmountKobo,
		ResolvedBy:       dispute.ResolvedBy,
		ResolvedAt:       dispute.ResolvedAt,
		CreatedAt:        dispute.CreatedAt,
	}
	for _, msg := range dispute.Messages {
		resp.Messages = append(resp.Messages, toDisputeMessageResponse(&msg))
	}
	return resp
}

func toDisputeResponses(disputes []models.Dispute) []disputeResponse {
	out := make([]disputeResponse, 0, len(disputes))
	for i := range disputes {
		out = append(out, toDisputeResponse(&disputes[i]))
	}
	return out
}

func toDisputeMessageResponse(msg *models.DisputeMessage) disputeMessageResponse {
	return disputeMessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt,
	}
}
