package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VehicleAccountBalance is a point-in-time snapshot of a TFN sub-account,
// not an append-only ledger: every sync overwrites it with the latest
// figures.
type VehicleAccountBalance struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SubAccountNo    string          `gorm:"uniqueIndex;size:50;not null" json:"sub_account_no"`
	VehicleId       int             `gorm:"index" json:"vehicle_id"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"balance"`
	CreditLimit     decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"credit_limit"`
	AvailableCredit decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"available_credit"`
	AsOfDate        *time.Time      `json:"as_of_date"`
	LastTfnSyncAt   *time.Time      `json:"last_tfn_sync_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
