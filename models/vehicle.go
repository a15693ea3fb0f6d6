package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is a fleet vehicle. Rows pre-exist in this database (fleet intake
// creates them); the TFN sync only augments matched rows with partner fields
// and never creates or deletes vehicles.
type Vehicle struct {
	ID                 int    `gorm:"primary_key" json:"id"`
	RegistrationNumber string `gorm:"uniqueIndex;size:50;not null" json:"registration_number"`
	FleetNumber        string `gorm:"size:50" json:"fleet_number"`
	Make               string `gorm:"size:100" json:"make"`
	Model              string `gorm:"size:100" json:"model"`
	SubAccountNo       string `gorm:"index;size:50" json:"sub_account_no"`

	// Partner fields, written only by the sync engine.
	TfnVehicleId   string          `gorm:"size:100" json:"tfn_vehicle_id"`
	TfnFleetNumber string          `gorm:"size:50" json:"tfn_fleet_number"`
	TfnStatus      string          `gorm:"size:50" json:"tfn_status"`
	TankSize       decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"tank_size"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"credit_limit"`
	CreditBalance  decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"credit_balance"`
	IsLinkedToTfn  *bool           `gorm:"not null;default:false" json:"is_linked_to_tfn"`
	LastTfnSyncAt  *time.Time      `json:"last_tfn_sync_at"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
