package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SendChannel is the transport a planned communication goes out on.
type SendChannel string

const (
	ChannelEmail  SendChannel = "email"
	ChannelSMS    SendChannel = "sms"
	ChannelLetter SendChannel = "letter"
)

// SendParameters is the channel-specific payload of a planned send. Email
// sends carry either an explicit address list or a contact role to resolve at
// dispatch time; SMS sends carry a phone number; letters carry a role whose
// postal address is looked up when the letter is produced.
type SendParameters struct {
	Role   string   `json:"role,omitempty"`
	Emails []string `json:"emails,omitempty"`
	Phone  string   `json:"phone,omitempty"`
}

func (p SendParameters) Equal(other SendParameters) bool {
	if p.Role != other.Role || p.Phone != other.Phone {
		return false
	}
	if len(p.Emails) != len(other.Emails) {
		return false
	}
	for i := range p.Emails {
		if p.Emails[i] != other.Emails[i] {
			return false
		}
	}
	return true
}

// ScheduledSend is one concrete planned communication for a document.
//
// Rows are created and reshaped only by the reconciliation pass; the dispatch
// worker only ever flips Sent/Skipped and SentAt. A row that has been
// attempted is never edited in place again: superseding state is expressed by
// a fresh row pointed to by ReplacementID, forming an append-only chain whose
// newest row has ReplacementID null.
type ScheduledSend struct {
	gorm.Model
	DocumentID uint        `gorm:"not null;index" json:"document_id"`
	Channel    SendChannel `gorm:"not null" json:"channel"`

	ScheduledAt time.Time `gorm:"not null;index" json:"scheduled_at"`
	Reference   string    `gorm:"not null;index" json:"reference"`

	Sent     bool       `gorm:"default:false" json:"sent"`
	SentAt   *time.Time `json:"sent_at"`
	Skipped  bool       `gorm:"default:false" json:"skipped"`
	Canceled bool       `gorm:"default:false" json:"canceled"`

	Parameters SendParameters `gorm:"type:jsonb;serializer:json" json:"parameters"`

	ReplacementID *uint `gorm:"index" json:"replacement_id"`
}

// Attempted reports whether downstream dispatch has already acted on the row.
// A skipped row counts: the dispatch worker looked at it and made a terminal
// decision, so reshaping it in place would rewrite history.
func (s *ScheduledSend) Attempted() bool {
	return s.Sent || s.Skipped
}

const sendReferencePrefix = "delivery"

// SendReference encodes the (delivery, step) pair a planned send belongs to.
func SendReference(deliveryID uint, stepID string) string {
	return fmt.Sprintf("%s:%d:%s", sendReferencePrefix, deliveryID, stepID)
}

// ParseSendReference decodes a reference produced by SendReference. Legacy
// rows predate step scoping and carry references that do not parse; callers
// must leave those rows alone.
func ParseSendReference(ref string) (deliveryID uint, stepID string, ok bool) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 || parts[0] != sendReferencePrefix || parts[2] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint(id), parts[2], true
}

// DueScheduledSends returns planned sends whose time has arrived and that are
// still actionable, oldest first. Superseded rows are excluded: only the leaf
// of a replacement chain is ever dispatched.
func DueScheduledSends(db *gorm.DB, now time.Time, limit int) ([]ScheduledSend, error) {
	var sends []ScheduledSend
	err := db.
		Where("scheduled_at <= ? AND sent = ? AND skipped = ? AND canceled = ? AND replacement_id IS NULL",
			now, false, false, false).
		Order("scheduled_at asc").
		Limit(limit).
		Find(&sends).Error
	return sends, err
}

// ScheduledSendsForDocument returns every planned send of a document,
// including replaced and attempted rows, in creation order.
func ScheduledSendsForDocument(db *gorm.DB, documentID uint) ([]ScheduledSend, error) {
	var sends []ScheduledSend
	err := db.Where("document_id = ?", documentID).Order("id asc").Find(&sends).Error
	return sends, err
}
