package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chaser/models"
)

func TestValidEmailRecipientsLeavesStoredParametersAlone(t *testing.T) {
	send := &models.ScheduledSend{
		Parameters: models.SendParameters{
			Emails: []string{"not-an-email", "good@example.com"},
		},
	}

	got := validEmailRecipients(&models.Document{}, send)

	assert.Equal(t, []string{"good@example.com"}, got)
	// The row's own list is reconciler state; filtering must not have
	// rewritten its backing array.
	assert.Equal(t, []string{"not-an-email", "good@example.com"}, send.Parameters.Emails)
}

func TestValidEmailRecipientsResolvesContactsByRole(t *testing.T) {
	doc := &models.Document{
		Customer: models.Customer{
			Contacts: []models.Contact{
				{Role: "billing", Email: "ap@example.com"},
				{Role: "director", Email: "boss@example.com"},
				{Role: "billing", Email: ""},
				{Role: "billing", Email: "broken"},
			},
		},
	}
	send := &models.ScheduledSend{
		Parameters: models.SendParameters{Role: "billing"},
	}

	got := validEmailRecipients(doc, send)

	assert.Equal(t, []string{"ap@example.com"}, got)
	assert.Empty(t, send.Parameters.Emails)
}

func TestValidEmailRecipientsEmptyRoleMatchesAllContacts(t *testing.T) {
	doc := &models.Document{
		Customer: models.Customer{
			Contacts: []models.Contact{
				{Role: "billing", Email: "ap@example.com"},
				{Role: "director", Email: "boss@example.com"},
			},
		},
	}

	got := validEmailRecipients(doc, &models.ScheduledSend{})

	assert.Equal(t, []string{"ap@example.com", "boss@example.com"}, got)
}
