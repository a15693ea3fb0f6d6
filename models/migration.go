package models

import (
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	utils.ErrorPanic(db.AutoMigrate(
		&Depot{}, &Vehicle{}, &Driver{},
		&FuelOrder{}, &FuelTransaction{}, &VehicleAccountBalance{},
		&TfnSyncRun{}, &TfnSyncError{},
	))
}
