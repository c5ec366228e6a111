package models

import (
	"log"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Checkout{}, &Payment{}, &Order{},
		&ReconciliationRun{}, &ReconciliationError{},
		&ShipmentSyncRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
