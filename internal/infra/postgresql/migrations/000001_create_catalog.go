package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

func createCatalogTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_catalog",
		Migrate: func(tx *gorm.DB) error {
			err := tx.AutoMigrate(
				&repository.PrizeModel{},
				&repository.ScratchCardModel{},
				&repository.RegistrationModel{},
				&repository.RedemptionModel{},
			)
			if err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_scratch_cards_status ON scratch_cards (status)`,
				`CREATE INDEX IF NOT EXISTS idx_registrations_scratch_card_id ON registrations (scratch_card_id)`,
				`CREATE INDEX IF NOT EXISTS idx_registrations_customer_phone ON registrations (customer_phone, registered_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_registrations_pending_reminder ON registrations (registered_at) WHERE reminded_at IS NULL`,
				`CREATE INDEX IF NOT EXISTS idx_redemptions_scratch_card_id ON redemptions (scratch_card_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.RedemptionModel{},
				&repository.RegistrationModel{},
				&repository.ScratchCardModel{},
				&repository.PrizeModel{},
			)
		},
	}
}
