package model

import "time"

// Paint is a catalog entry keyed by its business code.
type Paint struct {
	Code      string    `gorm:"primaryKey;size:32" json:"code"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Brand     string    `gorm:"size:128" json:"brand"`
	Color     string    `gorm:"size:64" json:"color"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the collection name.
func (Paint) TableName() string { return CollectionPaints }

// Solvent is a catalog entry keyed by its business code.
type Solvent struct {
	Code      string    `gorm:"primaryKey;size:32" json:"code"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Brand     string    `gorm:"size:128" json:"brand"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName pins the collection name.
func (Solvent) TableName() string { return CollectionSolvents }
