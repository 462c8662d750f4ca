package models

import (
	"gorm.io/gorm"
)

// User is a registered account that can chat and send money
type User struct {
	gorm.Model
	Username       string  `json:"username" gorm:"size:255;uniqueIndex;not null"`
	Email          string  `json:"email" gorm:"size:255;uniqueIndex;not null"`
	HashedPassword string  `json:"-" gorm:"size:255;not null"`
	Phone          string  `json:"phone" gorm:"size:20;index"` // WhatsApp number, optional
	Balance        float64 `json:"balance" gorm:"default:0"`
	Currency       string  `json:"currency" gorm:"size:10;default:COP"`
}

// UserRegistration is the payload for creating a new user account
type UserRegistration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`

	// InitialBalance seeds the account for demo environments
	InitialBalance float64 `json:"initial_balance"`
}

// UserLogin is the payload for authenticating a user
type UserLogin struct {
	Username string `json:"username"` // username or email
	Password string `json:"password"`
}
