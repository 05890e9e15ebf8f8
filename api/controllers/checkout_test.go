package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/batahq/bata-backend/api/middleware"
	"github.com/batahq/bata-backend/internal/checkout"
	"github.com/batahq/bata-backend/pkg/enums"
)

type stubCheckoutService struct {
	result *checkout.CheckoutResult
	err    error

	gotBuyer uuid.UUID
	gotInput checkout.CheckoutInput
}

func (s *stubCheckoutService) Execute(ctx context.Context, buyerID uuid.UUID, input checkout.CheckoutInput) (*checkout.CheckoutResult, error) {
	s.gotBuyer = buyerID
	s.gotInput = input
	return s.result, s.err
}

func authedRequest(method, target string, body io.Reader, userID uuid.UUID, role enums.UserRole) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestCheckoutSuccess(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	svc := &stubCheckoutService{result: &checkout.CheckoutResult{
		Orders: []checkout.OrderSummary{{
			OrderID:          uuid.New(),
			OrderNumber:      "BATA-20250301-0001",
			SellerID:         sellerID,
			ProductPriceKobo: 500000,
			TotalAmountKobo:  560000,
		}},
		GrandTotalKobo: 560000,
	}}
	handler := Checkout(svc, nil)

	productID := uuid.New()
	body := []byte(`{"items":[{"product_id":"` + productID.String() + `","qty":2}]}`)
	req := authedRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body), buyerID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotBuyer != buyerID {
		t.Fatalf("expected buyer %s got %s", buyerID, svc.gotBuyer)
	}
	if len(svc.gotInput.Items) != 1 || svc.gotInput.Items[0].Qty != 2 {
		t.Fatalf("unexpected forwarded input %+v", svc.gotInput)
	}

	var envelope struct {
		Data checkout.CheckoutResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.GrandTotalKobo != 560000 {
		t.Fatalf("expected grand total 560000 got %d", envelope.Data.GrandTotalKobo)
	}
}

func TestCheckoutRejectsNonBuyer(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	body := []byte(`{"items":[{"product_id":"` + uuid.NewString() + `","qty":1}]}`)
	req := authedRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body), uuid.New(), enums.UserRoleSeller)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader([]byte(`{"items":[]}`)), uuid.New(), enums.UserRoleBuyer)
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutMissingIdentity(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader([]byte(`{"items":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
