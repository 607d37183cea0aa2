package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultProvider = "default"

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable subject.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrIdentityNotFound indicates no identity exists for the user id.
	ErrIdentityNotFound = errors.New("users: identity not found")
)

// ServiceConfig describes the dependencies required for identity management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	NewID    func() (string, error)
}

// Service manages canonical user identifiers and their provider logins.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() (string, error)
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = newUUID
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		newID: newID,
	}, nil
}

// Upsert returns the identity for the provider+subject pair, creating it on first sight
// and refreshing the email and last-seen timestamp otherwise.
func (s *Service) Upsert(ctx context.Context, claims Claims) (Identity, error) {
	provider := normalize(claims.Provider)
	if provider == "" {
		provider = defaultProvider
	}
	subject := normalize(claims.Subject)
	if subject == "" {
		return Identity{}, ErrInvalidIdentity
	}
	email := normalizeEmail(claims.Email)

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.Where("provider = ? AND subject = ?", provider, subject).Take(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userID, err := s.newID()
		if err != nil {
			return Identity{}, fmt.Errorf("users: generate id: %w", err)
		}
		identity = Identity{
			UserID:     userID,
			Provider:   provider,
			Subject:    subject,
			Email:      email,
			LastSeenAt: s.now(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return Identity{}, fmt.Errorf("users: create identity: %w", err)
		}
		return identity, nil
	}
	if err != nil {
		return Identity{}, fmt.Errorf("users: lookup identity: %w", err)
	}

	updates := map[string]interface{}{"last_seen_at": s.now()}
	if email != "" && email != identity.Email {
		updates["user_email"] = email
	}
	if err := db.Model(&Identity{}).Where("user_id = ?", identity.UserID).Updates(updates).Error; err != nil {
		return Identity{}, fmt.Errorf("users: refresh identity: %w", err)
	}
	if value, ok := updates["user_email"].(string); ok {
		identity.Email = value
	}
	identity.LastSeenAt = updates["last_seen_at"].(time.Time)
	return identity, nil
}

// Lookup returns the identity for the canonical user id and whether it exists.
func (s *Service) Lookup(ctx context.Context, userID string) (Identity, bool, error) {
	userID = normalize(userID)
	if userID == "" {
		return Identity{}, false, ErrInvalidIdentity
	}
	var identity Identity
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("users: lookup identity: %w", err)
	}
	return identity, true, nil
}

// Delete removes the identity for the canonical user id.
func (s *Service) Delete(ctx context.Context, userID string) error {
	userID = normalize(userID)
	if userID == "" {
		return ErrInvalidIdentity
	}
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Identity{})
	if result.Error != nil {
		return fmt.Errorf("users: delete identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func newUUID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
