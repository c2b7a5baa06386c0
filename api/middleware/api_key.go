package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/photosort/photosort-backend/api/responses"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/logger"
)

const apiKeyHeader = "X-API-Key"

type apiKeyAuthenticator interface {
	Authenticate(ctx context.Context, secret string) (*models.APIKey, error)
}

// APIKeyAuth authenticates machine callers via the X-API-Key header and seeds
// the request context with the owning account. Write access is required for
// anything other than GET.
func APIKeyAuth(keys apiKeyAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if keys == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key service unavailable"))
				return
			}

			secret := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if secret == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing api key"))
				return
			}

			key, err := keys.Authenticate(ctx, secret)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if r.Method != http.MethodGet && r.Method != http.MethodHead && !key.CanWrite {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "api key lacks write access"))
				return
			}

			ctx = WithAccountID(ctx, key.AccountID)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, key.AccountID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
