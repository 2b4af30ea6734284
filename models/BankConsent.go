package models

import "gorm.io/gorm"

// ConsentPendingID is the sentinel stored while the bank has not yet
// assigned a consent id.
const ConsentPendingID = "pending"

// ConsentApproved is the only status that makes a consent usable.
const ConsentApproved = "approved"

type BankConsent struct {
	gorm.Model
	UserID   uint   `gorm:"index:idx_bank_consents_user_bank,unique"`
	BankName string `gorm:"index:idx_bank_consents_user_bank,unique;size:32"`

	ConsentID string
	ClientID  string
	Status    string
}
