package models

import "time"

// Customer is a known customer identity searched during intake.
type Customer struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:128;not null;index"`
	SearchKey    string `gorm:"size:128;index"` // lower-cased, accent-folded Name
	Email        string `gorm:"size:128;index"`
	Phone        string `gorm:"size:32"`
	Login        string `gorm:"size:64;index"`
	VIP          bool   `gorm:"not null"`
	RegisteredAt *time.Time
}
