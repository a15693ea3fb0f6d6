package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FuelTransaction is an immutable historical fact: once created, its
// financial fields are never updated, only the sync timestamp is touched.
// Distance and efficiency are derived at creation from the previous
// transaction of the same vehicle that carried an odometer reading.
type FuelTransaction struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	ExternalTransactionId string          `gorm:"uniqueIndex;size:100;not null" json:"external_transaction_id"`
	VehicleId             int             `gorm:"index" json:"vehicle_id"`
	DriverId              int             `gorm:"index" json:"driver_id"`
	DepotId               int             `gorm:"index" json:"depot_id"`
	Registration          string          `gorm:"size:50" json:"registration"`
	ProductCode           string          `gorm:"size:50" json:"product_code"`
	TransactionTime       time.Time       `gorm:"index" json:"transaction_time"`
	Odometer              int             `json:"odometer"`
	Volume                decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"volume"`
	UnitPrice             decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"unit_price"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"amount"`
	DistanceSinceLastFill int             `json:"distance_since_last_fill"`
	FuelEfficiency        decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"fuel_efficiency"`
	LastTfnSyncAt         *time.Time      `json:"last_tfn_sync_at"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
