package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Registrations imported from the legacy schema lack second_reminded_at.
func addRegistrationsSecondRemindedAt() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_add_registrations_second_reminded_at",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`ALTER TABLE registrations ADD COLUMN IF NOT EXISTS second_reminded_at TIMESTAMPTZ`,
				`CREATE INDEX IF NOT EXISTS idx_registrations_second_reminder ON registrations (reminded_at) WHERE second_reminded_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_registrations_second_reminder`,
				`ALTER TABLE registrations DROP COLUMN IF EXISTS second_reminded_at`,
			})
		},
	}
}
