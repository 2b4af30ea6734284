package models

import "gorm.io/gorm"

// User rows are created by the external identity service; this API only
// reads them to resolve an authenticated subject.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	Phone        string
	FirstName    string
	CompanyName  string

	IsAdmin   bool
	IsBlocked bool `gorm:"index"`

	BankTokens   []BankToken
	BankConsents []BankConsent
}
