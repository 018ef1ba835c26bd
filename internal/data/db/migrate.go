package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(program.AllModels()...); err != nil {
		return fmt.Errorf("automigrate program tables: %w", err)
	}
	return EnsureProgramIndexes(db)
}

// EnsureProgramIndexes adds the indexes gorm tags cannot express. Both
// Postgres and sqlite support partial indexes.
func EnsureProgramIndexes(db *gorm.DB) error {
	// At most one active version per user, independent of the pointer table.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_plan_version_one_active
		ON plan_version(user_id)
		WHERE status = 'active';
	`).Error; err != nil {
		return fmt.Errorf("create idx_plan_version_one_active: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_adjustment_record_user_created
		ON adjustment_record(user_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_adjustment_record_user_created: %w", err)
	}
	return nil
}
