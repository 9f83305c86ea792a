package models

import (
	"time"

	"gorm.io/gorm"
)

// Document is a receivable the customer owes money on. The chasing engine
// consumes only its issue date, due date and ownership; everything else is
// host-application bookkeeping.
type Document struct {
	gorm.Model
	AccountID  uint `gorm:"not null;index" json:"account_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`

	Number   string `gorm:"not null" json:"number"`
	Currency string `gorm:"default:'USD'" json:"currency"`
	// Amounts in minor units (cents).
	AmountCents int64 `gorm:"default:0" json:"amount_cents"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date"`
	Paid      bool       `gorm:"default:false" json:"paid"`

	Account  Account  `json:"-"`
	Customer Customer `json:"-"`
	Delivery Delivery `gorm:"foreignKey:DocumentID" json:"delivery,omitempty"`
}

// Dirty marks the document's delivery as needing reconciliation. Called after
// any mutation that can move computed send times.
func (d *Document) Dirty(db *gorm.DB) error {
	return db.Model(&Delivery{}).
		Where("document_id = ?", d.ID).
		Update("processed", false).Error
}
