package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/batahq/bata-backend/internal/auth"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

type stubAuthService struct {
	result *auth.LoginResult
	err    error
}

func (s stubAuthService) Register(ctx context.Context, input auth.RegisterInput) (*auth.LoginResult, error) {
	return s.result, s.err
}

func (s stubAuthService) Login(ctx context.Context, input auth.LoginInput) (*auth.LoginResult, error) {
	return s.result, s.err
}

func TestRegisterSuccess(t *testing.T) {
	handler := Register(stubAuthService{result: &auth.LoginResult{
		AccessToken: "access-token",
		UserID:      "e7a9f8f0-0000-0000-0000-000000000001",
		Role:        enums.UserRoleBuyer,
	}}, nil)

	body := []byte(`{"email":"buyer@unilag.edu.ng","password":"Secret#1pass","name":"Ada Buyer","role":"buyer"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data auth.LoginResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AccessToken != "access-token" {
		t.Fatalf("expected access token in payload got %+v", envelope.Data)
	}
	if envelope.Data.Role != enums.UserRoleBuyer {
		t.Fatalf("expected buyer role got %s", envelope.Data.Role)
	}
}

func TestRegisterInvalidPayload(t *testing.T) {
	handler := Register(stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(`{"password":"Secret#1pass"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	handler := Login(stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"buyer@unilag.edu.ng","password":"wrong-password"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED code got %s", envelope.Error.Code)
	}
}
