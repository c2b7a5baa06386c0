package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/photosort/photosort-backend/api/middleware"
	"github.com/photosort/photosort-backend/api/responses"
	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/pkg/config"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/logger"
)

type accountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type accountMeResponse struct {
	Account     *accounts.AccountDTO `json:"account"`
	Entitlement accounts.Entitlement `json:"entitlement"`
}

// AccountMe returns the authenticated account with its current entitlement.
func AccountMe(repo accountReader, quota config.QuotaConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account repository unavailable"))
			return
		}

		accountID := middleware.AccountIDFromContext(ctx)
		if accountID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		acct, err := repo.GetByID(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, accountMeResponse{
			Account:     accounts.NewAccountDTO(acct),
			Entitlement: accounts.Evaluate(acct, time.Now().UTC(), int64(quota.FreeTierLimit)),
		})
	}
}
