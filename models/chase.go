package models

import (
	"time"

	"gorm.io/gorm"
)

// ChaseTrigger is the rule type governing when a chase step fires.
type ChaseTrigger string

const (
	TriggerOnIssue    ChaseTrigger = "on_issue"
	TriggerBeforeDue  ChaseTrigger = "before_due"
	TriggerAfterDue   ChaseTrigger = "after_due"
	TriggerAfterIssue ChaseTrigger = "after_issue"
	TriggerAbsolute   ChaseTrigger = "absolute"
	TriggerRepeater   ChaseTrigger = "repeater"
)

// StepOptions carries the trigger-specific settings of a chase step. Every
// trigger uses Hour and the channel booleans; Days, Repeats, Date and Role are
// only meaningful for the triggers that require them.
type StepOptions struct {
	Hour    int        `json:"hour"`
	Days    int        `json:"days,omitempty"`
	Repeats int        `json:"repeats,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Role    string     `json:"role,omitempty"`

	Email  bool `json:"email"`
	SMS    bool `json:"sms"`
	Letter bool `json:"letter"`
}

func (o StepOptions) Equal(other StepOptions) bool {
	if o.Hour != other.Hour || o.Days != other.Days || o.Repeats != other.Repeats ||
		o.Role != other.Role || o.Email != other.Email || o.SMS != other.SMS ||
		o.Letter != other.Letter {
		return false
	}
	if (o.Date == nil) != (other.Date == nil) {
		return false
	}
	if o.Date != nil && !o.Date.Equal(*other.Date) {
		return false
	}
	return true
}

// ChannelEnabled reports whether the step asks for the given channel.
func (o StepOptions) ChannelEnabled(ch SendChannel) bool {
	switch ch {
	case ChannelEmail:
		return o.Email
	case ChannelSMS:
		return o.SMS
	case ChannelLetter:
		return o.Letter
	}
	return false
}

// ChaseStep is one rule in a document's chasing schedule. Steps are stored as
// jsonb on the owning Delivery rather than as rows of their own; the ID is the
// stable identity the scheduler uses to key ScheduledSend rows back to a step.
type ChaseStep struct {
	ID      string       `json:"id,omitempty"`
	Trigger ChaseTrigger `json:"trigger"`
	Options StepOptions  `json:"options"`
}

// SameContent reports whether two steps are the same rule, ignoring identity
// and position. This is the comparison step identity tracks.
func (s ChaseStep) SameContent(other ChaseStep) bool {
	return s.Trigger == other.Trigger && s.Options.Equal(other.Options)
}

// MaxScheduleSteps caps how many steps a single schedule may carry.
const MaxScheduleSteps = 100

// Delivery binds a receivable document to its active chasing schedule and
// processing state. Exactly one per document. Any mutation of the schedule,
// the document's dates or the disabled flag must clear Processed so the next
// sweep reconciles the document again.
type Delivery struct {
	gorm.Model
	DocumentID uint `gorm:"not null;uniqueIndex" json:"document_id"`

	Schedule []ChaseStep `gorm:"type:jsonb;serializer:json" json:"schedule"`

	Processed bool `gorm:"default:false;index" json:"processed"`
	Disabled  bool `gorm:"default:false" json:"disabled"`

	// Per-document recipient configuration. ContactRole picks which customer
	// contacts receive chasers when no explicit address list is set; the role
	// is resolved to concrete addresses at dispatch time, not here.
	ContactRole     string   `gorm:"default:'billing'" json:"contact_role"`
	EmailRecipients []string `gorm:"type:jsonb;serializer:json" json:"email_recipients"`
	SMSRecipient    string   `json:"sms_recipient"`

	Document *Document `json:"-"`
}

// StepByID returns the schedule step carrying the given identity, if any.
func (d *Delivery) StepByID(id string) (ChaseStep, bool) {
	for _, s := range d.Schedule {
		if s.ID == id {
			return s, true
		}
	}
	return ChaseStep{}, false
}

// HasStep reports whether the given step identity is present in the schedule.
func (d *Delivery) HasStep(id string) bool {
	_, ok := d.StepByID(id)
	return ok
}
