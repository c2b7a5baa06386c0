package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/pkg/db/models"
)

type stubAccountLoader struct {
	accounts map[uuid.UUID]*models.Account
}

func (s *stubAccountLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	acct, ok := s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return acct, nil
}

func TestRequirePremiumAllowsActiveGrant(t *testing.T) {
	expires := time.Now().UTC().Add(24 * time.Hour)
	cases := map[string]*models.Account{
		"dated grant":      {IsPremium: true, PremiumExpires: &expires},
		"open-ended grant": {IsPremium: true},
	}

	for name, acct := range cases {
		accountID := uuid.New()
		acct.ID = accountID
		loader := &stubAccountLoader{accounts: map[uuid.UUID]*models.Account{accountID: acct}}

		handler := RequirePremium(loader, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithAccountID(req.Context(), accountID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, rec.Code)
		}
	}
}

func TestRequirePremiumRejectsFreeAndLapsed(t *testing.T) {
	lapsed := time.Now().UTC().Add(-time.Hour)
	cases := map[string]*models.Account{
		"free account":   {IsPremium: false},
		"lapsed premium": {IsPremium: true, PremiumExpires: &lapsed},
	}

	for name, acct := range cases {
		accountID := uuid.New()
		acct.ID = accountID
		loader := &stubAccountLoader{accounts: map[uuid.UUID]*models.Account{accountID: acct}}

		handler := RequirePremium(loader, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithAccountID(req.Context(), accountID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", name, rec.Code)
		}
	}
}

func TestRequirePremiumRejectsMissingContext(t *testing.T) {
	loader := &stubAccountLoader{accounts: map[uuid.UUID]*models.Account{}}
	handler := RequirePremium(loader, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
