package model

import "time"

// Machine is a piece of equipment installed at a client's site.
type Machine struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ClientID     string    `gorm:"size:64;index;not null" json:"client_id"` // Soft reference to Client.ID
	Name         string    `gorm:"size:256;not null" json:"name"`
	Brand        string    `gorm:"size:128" json:"brand"`
	Model        string    `gorm:"size:128" json:"model"`
	SerialNumber string    `gorm:"size:128" json:"serial_number"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the collection name.
func (Machine) TableName() string { return CollectionMachines }
