package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/pkg/auth"
	"github.com/photosort/photosort-backend/pkg/config"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/security"
)

// minPasswordLen is the floor for new account passwords.
const minPasswordLen = 8

type accountRepository interface {
	Create(ctx context.Context, acct *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

// Credentials is an email/password pair.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// TokenPair is what a successful login hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service registers accounts and authenticates logins.
type Service interface {
	Register(ctx context.Context, creds Credentials) (*models.Account, error)
	Login(ctx context.Context, creds Credentials) (*models.Account, *TokenPair, error)
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	AccountRepo accountRepository
	Sessions    sessionManager
	JWT         config.JWTConfig
	Password    config.PasswordConfig
}

type service struct {
	accounts accountRepository
	sessions sessionManager
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	now      func() time.Time
}

// NewService builds the auth service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.AccountRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account repo required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	return &service{
		accounts: params.AccountRepo,
		sessions: params.Sessions,
		jwtCfg:   params.JWT,
		pwCfg:    params.Password,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates a free-tier account. Email uniqueness is enforced first by
// lookup for a friendly error, then by the unique index for races.
func (s *service) Register(ctx context.Context, creds Credentials) (*models.Account, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	if len(creds.Password) < minPasswordLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing email")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(creds.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	acct := &models.Account{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	return acct, nil
}

// Login verifies credentials, mints a JWT, opens a refresh session, and
// records the login time. Disabled accounts are rejected before the token is
// minted.
func (s *service) Login(ctx context.Context, creds Credentials) (*models.Account, *TokenPair, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, nil, err
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	ok, err := security.VerifyPassword(creds.Password, acct.PasswordHash)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}
	if !acct.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	}

	jti := uuid.NewString()
	access, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		AccountID: acct.ID,
		JTI:       jti,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refresh, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open refresh session")
	}

	if err := s.accounts.TouchLogin(ctx, acct.ID, s.now()); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}

	return acct, &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	return email, nil
}
