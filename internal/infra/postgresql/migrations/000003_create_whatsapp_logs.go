package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

func createWhatsAppLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_whatsapp_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryLogModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_whatsapp_logs_phone_created ON whatsapp_logs (customer_phone, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_whatsapp_logs_status ON whatsapp_logs (status)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryLogModel{})
		},
	}
}
