package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FuelOrder is a fuel allocation order pulled from TFN. Orders flagged
// deleted on the partner side are never written here.
type FuelOrder struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ExternalOrderId string          `gorm:"uniqueIndex;size:100;not null" json:"external_order_id"`
	VehicleId       int             `gorm:"index" json:"vehicle_id"`
	Registration    string          `gorm:"size:50" json:"registration"`
	ProductCode     string          `gorm:"size:50" json:"product_code"`
	OrderDate       *time.Time      `json:"order_date"`
	ValidUntil      *time.Time      `json:"valid_until"`
	TotalAllocation decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"total_allocation"`
	Status          string          `gorm:"size:50" json:"status"`
	LastTfnSyncAt   *time.Time      `json:"last_tfn_sync_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
