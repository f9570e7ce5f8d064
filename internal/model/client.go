package model

import "time"

// Client represents a customer owning machines and receiving reports.
type Client struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Company   string    `gorm:"size:256" json:"company"`
	Email     string    `gorm:"size:256" json:"email"`
	Phone     string    `gorm:"size:64" json:"phone"`
	Address   string    `gorm:"size:512" json:"address"`
	City      string    `gorm:"size:128" json:"city"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the collection name.
func (Client) TableName() string { return CollectionClients }
