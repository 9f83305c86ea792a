package models

import "gorm.io/gorm"

// Customer is the party being chased for payment.
type Customer struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Name      string `gorm:"not null" json:"name"`

	Contacts  []Contact  `gorm:"foreignKey:CustomerID" json:"contacts,omitempty"`
	Documents []Document `gorm:"foreignKey:CustomerID" json:"documents,omitempty"`
}

// Contact is a person at a customer. Roles (billing, primary, ...) are what
// chase steps and deliveries reference; the dispatch worker resolves a role to
// concrete addresses at send time so contact edits take effect without
// reprocessing schedules.
type Contact struct {
	gorm.Model
	CustomerID uint   `gorm:"not null;index" json:"customer_id"`
	Role       string `gorm:"default:'billing'" json:"role"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// ContactsByRole returns the customer's contacts matching a role. An empty
// role matches every contact.
func ContactsByRole(db *gorm.DB, customerID uint, role string) ([]Contact, error) {
	q := db.Where("customer_id = ?", customerID)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var contacts []Contact
	err := q.Find(&contacts).Error
	return contacts, err
}
