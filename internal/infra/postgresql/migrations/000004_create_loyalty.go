package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

func createLoyaltyTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_loyalty",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.CustomerLoyaltyModel{},
				&repository.AchievementModel{},
				&repository.CustomerAchievementModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.CustomerAchievementModel{},
				&repository.AchievementModel{},
				&repository.CustomerLoyaltyModel{},
			)
		},
	}
}
