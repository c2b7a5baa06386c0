package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/photosort/photosort-backend/api/responses"
	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/logger"
)

type accountLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// RequirePremium rejects requests from accounts without an active premium grant.
// Quota enforcement for metered endpoints happens in the usage service; this
// guard covers features that are premium-only regardless of remaining quota.
func RequirePremium(loader accountLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if loader == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account loader unavailable"))
				return
			}

			accountID := AccountIDFromContext(ctx)
			if accountID == uuid.Nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
				return
			}

			acct, err := loader.GetByID(ctx, accountID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if !accounts.PremiumActive(acct, time.Now().UTC()) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "premium subscription required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
