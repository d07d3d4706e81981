package database

import (
	"errors"
	"time"

	"github.com/driftpad/driftpad/internal/rooms"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDefaultContent = "2026-08-12_backfill_default_content"

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
		{name: migrationBackfillDefaultContent, apply: backfillDefaultContent},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early builds created rows with an empty content column; seed those rows
// with the default welcome document.
func backfillDefaultContent(db *gorm.DB) error {
	return db.Model(&rooms.Document{}).
		Where("content = ''").
		Update("content", rooms.DefaultContent).Error
}
