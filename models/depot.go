package models

import "time"

// Depot is a TFN fuel depot. Rows are owned by the sync engine: created on
// first sight of a depot code, refreshed on every run, never deleted.
type Depot struct {
	ID            int        `gorm:"primary_key" json:"id"`
	DepotCode     string     `gorm:"uniqueIndex;size:50;not null" json:"depot_code"`
	Name          string     `gorm:"size:255" json:"name"`
	Address       string     `gorm:"type:text" json:"address"`
	City          string     `gorm:"size:100" json:"city"`
	Province      string     `gorm:"size:100" json:"province"`
	PostalCode    string     `gorm:"size:20" json:"postal_code"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Phone         string     `gorm:"size:30" json:"phone"`
	Email         string     `gorm:"size:255" json:"email"`
	IsActive      *bool      `gorm:"not null;default:true" json:"is_active"`
	LastTfnSyncAt *time.Time `json:"last_tfn_sync_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
