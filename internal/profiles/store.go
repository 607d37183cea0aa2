package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrMissingUserID indicates an operation was attempted without a user identifier.
	ErrMissingUserID = errors.New("profiles: user id required")
	// ErrProfileExists indicates a profile row already exists for the user.
	ErrProfileExists = errors.New("profiles: profile already exists")

	errMissingDatabase   = errors.New("profiles: database connection required")
	errMissingIDProvider = errors.New("profiles: id provider required")
)

// StoreConfig describes the dependencies of the profile store.
type StoreConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store reads and writes rows in the profiles table.
type Store struct {
	db         *gorm.DB
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// FindByUserID returns the profile for the user and whether one exists.
func (s *Store) FindByUserID(ctx context.Context, userID string) (Profile, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, false, ErrMissingUserID
	}
	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("profiles: select %s: %w", userID, err)
	}
	return profile, true, nil
}

// Insert stores a new profile row, assigning an identifier when missing.
func (s *Store) Insert(ctx context.Context, profile Profile) (Profile, error) {
	profile.UserID = strings.TrimSpace(profile.UserID)
	if profile.UserID == "" {
		return Profile{}, ErrMissingUserID
	}
	if profile.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Profile{}, fmt.Errorf("profiles: generate id: %w", err)
		}
		profile.ID = id
	}

	err := s.db.WithContext(ctx).Create(&profile).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Profile{}, ErrProfileExists
	}
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: insert %s: %w", profile.UserID, err)
	}
	s.logger.Debug("profile created", zap.String("user_id", profile.UserID), zap.String("username", profile.Username))
	return profile, nil
}

// DeleteByUserID removes the user's profile row. Deleting a missing row is not an error.
func (s *Store) DeleteByUserID(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUserID
	}
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Profile{})
	if result.Error != nil {
		return fmt.Errorf("profiles: delete %s: %w", userID, result.Error)
	}
	s.logger.Debug("profile deleted", zap.String("user_id", userID), zap.Int64("rows", result.RowsAffected))
	return nil
}
