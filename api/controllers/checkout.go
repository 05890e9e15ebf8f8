package controllers

import (
	"net/http"

	"github.com/batahq/bata-backend/api/responses"
	"github.com/batahq/bata-backend/api/validators"
	"github.com/batahq/bata-backend/internal/checkout"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/logger"
)

// Checkout charges the buyer's cart and creates one order per seller.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if act.Role != enums.UserRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can check out"))
			return
		}

		var input checkout.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), act.ID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
