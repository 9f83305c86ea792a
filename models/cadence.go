package models

import "gorm.io/gorm"

// Cadence is a reusable named schedule template. Applying a cadence to a
// document copies its steps into the document's delivery; the engine then
// assigns the copies fresh identities, so later edits to the cadence never
// reach documents it was already applied to.
type Cadence struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Name      string `gorm:"not null" json:"name"`

	Steps []ChaseStep `gorm:"type:jsonb;serializer:json" json:"steps"`

	// Applied to new documents when no cadence is named explicitly.
	IsDefault bool `gorm:"default:false" json:"is_default"`
}
