package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/batahq/bata-backend/api/responses"
	"github.com/batahq/bata-backend/api/validators"
	"github.com/batahq/bata-backend/internal/disputes"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/logger"
	"github.com/batahq/bata-backend/pkg/pagination"
)

type openDisputeRequest struct {
	Reason   string   `json:"reason" validate:"required"`
	Evidence []string `json:"evidence" validate:"omitempty,dive,required"`
}

type disputeMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

type disputeEvidenceRequest struct {
	Items []string `json:"items" validate:"required,min=1,dive,required"`
}

type resolveDisputeRequest struct {
	Status         string `json:"status" validate:"required"`
	Resolution     string `json:"resolution" validate:"required"`
	RefundKobo     *int64 `json:"refund_kobo"`
	PenalizeBuyer  bool   `json:"penalize_buyer"`
	PenalizeSeller bool   `json:"penalize_seller"`
	PenaltyReason  string `json:"penalty_reason"`
}

// OpenDispute attaches a new dispute to an order. Buyer only.
func OpenDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req openDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Open(r.Context(), disputes.OpenInput{
			OrderID:  orderID,
			BuyerID:  act.ID,
			Reason:   req.Reason,
			Evidence: req.Evidence,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeResponse(dispute))
	}
}

// GetDispute returns one dispute with its message thread.
func GetDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), disputeID, act.ID, act.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

// ListDisputes pages the disputes the actor is a party to.
func ListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), act.ID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponses(list))
	}
}

// PostDisputeMessage appends one message to an active dispute thread.
func PostDisputeMessage(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req disputeMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.PostMessage(r.Context(), disputes.MessageInput{
			DisputeID: disputeID,
			SenderID:  act.ID,
			Role:      act.Role,
			Body:      req.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeMessageResponse(msg))
	}
}

// SubmitDisputeEvidence adds evidence items for the sender's side.
func SubmitDisputeEvidence(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req disputeEvidenceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.SubmitEvidence(r.Context(), disputes.EvidenceInput{
			DisputeID: disputeID,
			SenderID:  act.ID,
			Items:     req.Items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

// StartDisputeReview moves an OPEN dispute to UNDER_REVIEW. Admin only.
func StartDisputeReview(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.StartReview(r.Context(), disputeID, act.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

// ResolveDispute applies the administrative verdict and its money outcome.
func ResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDisputeStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute status"))
			return
		}

		dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:      disputeID,
			AdminID:        act.ID,
			TargetStatus:   status,
			Resolution:     req.Resolution,
			RefundKobo:     req.RefundKobo,
			PenalizeBuyer:  req.PenalizeBuyer,
			PenalizeSeller: req.PenalizeSeller,
			PenaltyReason:  req.PenaltyReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}
