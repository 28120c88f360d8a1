package models

import (
	"log"

	"github.com/mmdatafocus/booksync/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Account{}, &Contact{},
		&Invoice{}, &Bill{}, &Payment{},
		&BankTransaction{}, &JournalEntry{},
		&IntegrationConnection{}, &SyncRun{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
