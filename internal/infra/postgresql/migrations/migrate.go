package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createCatalogTables(),
		createNotificationQueueTable(),
		createWhatsAppLogsTable(),
		createLoyaltyTables(),
		createWhatsAppMessagesTable(),
		addRegistrationsSecondRemindedAt(),
		createDigitalReceiptsTable(),
	})

	return m.Migrate()
}

func execAll(tx *gorm.DB, statements []string) error {
	for _, sql := range statements {
		if err := tx.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}
