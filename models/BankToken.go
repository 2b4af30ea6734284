package models

import (
	"time"

	"gorm.io/gorm"
)

// BankToken caches one client-credentials access token per (user, bank).
// Rows are only ever written by the token manager's refresh path.
type BankToken struct {
	gorm.Model
	UserID   uint   `gorm:"index:idx_bank_tokens_user_bank,unique"`
	BankName string `gorm:"index:idx_bank_tokens_user_bank,unique;size:32"`

	AccessToken string
	ExpiresAt   time.Time
}
