package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/showcase/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLowercaseIdentityEmails = "2026-09-01_lowercase_identity_emails"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationLowercaseIdentityEmails, apply: lowercaseIdentityEmails},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// lowercaseIdentityEmails brings identities written before email normalization in line with Upsert.
func lowercaseIdentityEmails(db *gorm.DB) error {
	return db.Model(&users.Identity{}).
		Where("user_email <> lower(user_email)").
		Update("user_email", gorm.Expr("lower(user_email)")).Error
}
