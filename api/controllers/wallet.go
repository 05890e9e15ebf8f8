package controllers

import (
	"net/http"
	"strings"

	"github.com/batahq/bata-backend/api/responses"
	"github.com/batahq/bata-backend/api/validators"
	"github.com/batahq/bata-backend/internal/wallet"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/logger"
	"github.com/batahq/bata-backend/pkg/pagination"
)

type withdrawRequest struct {
	AmountKobo int64 `json:"amount_kobo" validate:"required,gt=0"`
}

type ledgerPageResponse struct {
	Entries    []ledgerEntryResponse `json:"entries"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// GetWallet returns the actor's balance snapshot.
func GetWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balances, err := svc.GetBalances(r.Context(), act.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balances)
	}
}

// ListLedger pages the actor's ledger history, newest first.
func ListLedger(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
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
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		entries, next, err := svc.ListLedger(r.Context(), act.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledgerPageResponse{
			Entries:    toLedgerEntryResponses(entries),
			NextCursor: next,
		})
	}
}

// Withdraw moves available balance out of the marketplace.
func Withdraw(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req withdrawRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Withdraw(r.Context(), act.ID, req.AmountKobo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toLedgerEntryResponses([]models.LedgerEntry{*entry})[0])
	}
}
