package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

func createWhatsAppMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_whatsapp_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ChatMessageModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_whatsapp_messages_phone_created ON whatsapp_messages (customer_phone, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ChatMessageModel{})
		},
	}
}
