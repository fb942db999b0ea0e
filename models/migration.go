package models

import (
	"log"

	"github.com/mmdatafocus/fiscal_review/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Report{}, &FiscalTransaction{}, &ReportTransactionPosition{},
		&ReviewRecord{}, &ReviewVote{}, &ReportReviewer{},
		&Signature{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
