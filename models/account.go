package models

import (
	"time"

	"gorm.io/gorm"
)

// ChannelSet is a tenant's resolved channel capability, computed once per
// reconciliation or dispatch pass and passed around as a value so the engine
// never re-queries account configuration mid-pass.
type ChannelSet struct {
	Email  bool
	SMS    bool
	Letter bool
}

func (cs ChannelSet) Supports(ch SendChannel) bool {
	switch ch {
	case ChannelEmail:
		return cs.Email
	case ChannelSMS:
		return cs.SMS
	case ChannelLetter:
		return cs.Letter
	}
	return false
}

// Account is a tenant: the business chasing its receivables. It owns the
// channel configuration, the default chase hour applied to newly authored
// steps and the SMTP/SMS credentials used by the dispatch worker.
type Account struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	Timezone string `gorm:"default:'UTC'" json:"timezone"`

	// Default hour-of-day (0-23) suggested for new schedule steps.
	ChaseHour int `gorm:"default:10" json:"chase_hour"`

	EmailEnabled  bool `gorm:"default:true" json:"email_enabled"`
	SMSEnabled    bool `gorm:"default:false" json:"sms_enabled"`
	LetterEnabled bool `gorm:"default:false" json:"letter_enabled"`

	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`

	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `gorm:"default:587" json:"smtp_port"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"-"` // encrypted in the application layer
	SMTPEncryption string `gorm:"default:'STARTTLS'" json:"smtp_encryption"`

	SMSGatewayURL string `json:"sms_gateway_url"`
	SMSGatewayKey string `json:"-"` // encrypted in the application layer

	Users     []User     `gorm:"foreignKey:AccountID" json:"users,omitempty"`
	Customers []Customer `gorm:"foreignKey:AccountID" json:"customers,omitempty"`
}

// Channels resolves the account's capability set.
func (a *Account) Channels() ChannelSet {
	return ChannelSet{
		Email:  a.EmailEnabled,
		SMS:    a.SMSEnabled,
		Letter: a.LetterEnabled,
	}
}

// Location resolves the account timezone, falling back to UTC when the stored
// name is empty or unknown.
func (a *Account) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
