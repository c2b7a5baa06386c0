package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

// keyPrefix marks every secret this engine mints.
const keyPrefix = "psk_"

// secretBytes is the entropy behind each key.
const secretBytes = 32

// prefixDisplayLen is how much of the secret survives for list displays.
const prefixDisplayLen = 12

// MintInput describes the key being created.
type MintInput struct {
	Name      string     `json:"name" validate:"required,max=120"`
	CanRead   bool       `json:"can_read"`
	CanWrite  bool       `json:"can_write"`
	CanDelete bool       `json:"can_delete"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// MintedKey carries the plaintext secret exactly once, at mint time.
type MintedKey struct {
	Key    *APIKeyDTO `json:"key"`
	Secret string     `json:"secret"`
}

// Service mints and validates capability-scoped API keys. Secrets are stored
// as SHA-256 digests; the plaintext is returned once and never persisted.
type Service struct {
	db *gorm.DB
}

// NewService binds the API key service to the provided GORM connection.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Mint creates a key for the account and returns the one-time secret.
func (s *Service) Mint(ctx context.Context, accountID uuid.UUID, input MintInput) (*MintedKey, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key name is required")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
	}

	secret, err := mintSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint key secret")
	}

	key := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		KeyHash:   HashKey(secret),
		KeyPrefix: secret[:prefixDisplayLen],
		Name:      name,
		CanRead:   input.CanRead,
		CanWrite:  input.CanWrite,
		CanDelete: input.CanDelete,
		IsActive:  true,
		ExpiresAt: input.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist api key")
	}

	return &MintedKey{Key: NewAPIKeyDTO(key), Secret: secret}, nil
}

// List returns the account's keys, newest first. Hashes stay internal.
func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]APIKeyDTO, error) {
	var keys []models.APIKey
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list api keys")
	}
	out := make([]APIKeyDTO, 0, len(keys))
	for i := range keys {
		out = append(out, *NewAPIKeyDTO(&keys[i]))
	}
	return out, nil
}

// Revoke deactivates the key. The row survives for audit.
func (s *Service) Revoke(ctx context.Context, accountID, keyID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ? AND account_id = ?", keyID, accountID).
		Update("is_active", false)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "revoke api key")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "api key not found")
	}
	return nil
}

// Authenticate resolves a presented secret to its key, enforcing the same
// strict-expiry rule the premium evaluator uses. Usage bookkeeping advances
// on success.
func (s *Service) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	if !strings.HasPrefix(secret, keyPrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
	}

	var key models.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ?", HashKey(secret)).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load api key")
	}

	if !key.Valid(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "api key inactive or expired")
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Updates(map[string]any{
			"last_used_at": now,
			"usage_count":  gorm.Expr("usage_count + 1"),
		}).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch api key")
	}

	return &key, nil
}

// HashKey digests a plaintext secret for storage and lookup.
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func mintSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}
