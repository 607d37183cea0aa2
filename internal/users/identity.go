package users

import (
	"strings"
	"time"
)

// Identity is the authentication record for a Showcase user, keyed by the canonical user id.
type Identity struct {
	UserID     string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Provider   string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_identity_provider_subject"`
	Subject    string    `gorm:"column:subject;size:190;not null;uniqueIndex:idx_identity_provider_subject"`
	Email      string    `gorm:"column:user_email;size:320"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Claims carries what an identity provider asserted about the user.
type Claims struct {
	Provider string
	Subject  string
	Email    string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
