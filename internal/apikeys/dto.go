package apikeys

import (
	"time"

	"github.com/google/uuid"

	"github.com/photosort/photosort-backend/pkg/db/models"
)

// APIKeyDTO is the list/display shape of a key. The hash never leaves the
// service; only the minted prefix identifies the secret.
type APIKeyDTO struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	CanRead    bool       `json:"can_read"`
	CanWrite   bool       `json:"can_write"`
	CanDelete  bool       `json:"can_delete"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAPIKeyDTO maps the stored model onto the public shape.
func NewAPIKeyDTO(key *models.APIKey) *APIKeyDTO {
	if key == nil {
		return nil
	}
	return &APIKeyDTO{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		CanRead:    key.CanRead,
		CanWrite:   key.CanWrite,
		CanDelete:  key.CanDelete,
		IsActive:   key.IsActive,
		LastUsedAt: key.LastUsedAt,
		UsageCount: key.UsageCount,
		ExpiresAt:  key.ExpiresAt,
		CreatedAt:  key.CreatedAt,
	}
}
