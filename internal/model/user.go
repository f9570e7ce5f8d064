package model

import "time"

// User is an account known to the identity provider.
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:256;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	DisplayName  string    `gorm:"size:256"`
	CreatedAt    time.Time `gorm:"not null"`
}
