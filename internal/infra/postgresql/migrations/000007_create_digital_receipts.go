package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

// Prizes imported from the legacy schema may predate prize_value.
func createDigitalReceiptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000007_create_digital_receipts",
		Migrate: func(tx *gorm.DB) error {
			if err := execAll(tx, []string{
				`ALTER TABLE prizes ADD COLUMN IF NOT EXISTS prize_value NUMERIC(10,2) NOT NULL DEFAULT 0`,
			}); err != nil {
				return err
			}
			return tx.AutoMigrate(&repository.DigitalReceiptModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DigitalReceiptModel{})
		},
	}
}
