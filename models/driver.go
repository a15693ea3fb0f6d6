package models

import "time"

// Driver identity fields (license number, names) are set once at creation;
// the sync engine only refreshes contact fields afterwards.
type Driver struct {
	ID            int        `gorm:"primary_key" json:"id"`
	LicenseNo     string     `gorm:"uniqueIndex;size:50;not null" json:"license_no"`
	FirstName     string     `gorm:"size:100" json:"first_name"`
	LastName      string     `gorm:"size:100" json:"last_name"`
	Phone         string     `gorm:"index;size:30" json:"phone"`
	Email         string     `gorm:"size:255" json:"email"`
	IsActive      *bool      `gorm:"not null;default:true" json:"is_active"`
	LastTfnSyncAt *time.Time `json:"last_tfn_sync_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
