package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a capability-scoped credential tied to one account. The secret is
// stored hashed; only the prefix survives for display.
type APIKey struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID  uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index"`
	KeyHash    string     `gorm:"column:key_hash;not null;uniqueIndex"`
	KeyPrefix  string     `gorm:"column:key_prefix;not null"`
	Name       string     `gorm:"column:name;not null"`
	CanRead    bool       `gorm:"column:can_read;not null;default:true"`
	CanWrite   bool       `gorm:"column:can_write;not null;default:false"`
	CanDelete  bool       `gorm:"column:can_delete;not null;default:false"`
	IsActive   bool       `gorm:"column:is_active;not null;default:true"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	UsageCount int64      `gorm:"column:usage_count;not null;default:0"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Valid reports whether the key may authenticate at the provided instant.
// The expiry comparison is strict: a key expiring exactly now is invalid.
func (k APIKey) Valid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}
