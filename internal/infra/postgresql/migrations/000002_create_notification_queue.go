package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/raspapremio/prize-notifier/internal/repository"
	"gorm.io/gorm"
)

func createNotificationQueueTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_queue",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.QueueEntryModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_due ON notification_queue (scheduled_for) WHERE status = 'pending'`,
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_processing ON notification_queue (last_attempt_at) WHERE status = 'processing'`,
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_registration_id ON notification_queue (registration_id) WHERE registration_id IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.QueueEntryModel{})
		},
	}
}
