package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

type stubKeyAuthenticator struct {
	keys map[string]*models.APIKey
}

func (s *stubKeyAuthenticator) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	key, ok := s.keys[secret]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
	}
	return key, nil
}

func TestAPIKeyAuthSeedsAccountContext(t *testing.T) {
	accountID := uuid.New()
	auth := &stubKeyAuthenticator{keys: map[string]*models.APIKey{
		"psk_good": {ID: uuid.New(), AccountID: accountID, CanRead: true, CanWrite: true, IsActive: true},
	}}

	var captured uuid.UUID
	handler := APIKeyAuth(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-Key", "psk_good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured != accountID {
		t.Fatalf("expected account %s, got %s", accountID, captured)
	}
}

func TestAPIKeyAuthRejectsMissingAndUnknownKeys(t *testing.T) {
	auth := &stubKeyAuthenticator{keys: map[string]*models.APIKey{}}
	handler := APIKeyAuth(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "psk_unknown")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key: expected 401, got %d", rec.Code)
	}
}

func TestAPIKeyAuthEnforcesWriteCapability(t *testing.T) {
	auth := &stubKeyAuthenticator{keys: map[string]*models.APIKey{
		"psk_readonly": {ID: uuid.New(), AccountID: uuid.New(), CanRead: true, IsActive: true},
	}}
	handler := APIKeyAuth(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "psk_readonly")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("read with read-only key: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-Key", "psk_readonly")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("write with read-only key: expected 403, got %d", rec.Code)
	}
}
