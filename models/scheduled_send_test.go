package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendReferenceRoundTrip(t *testing.T) {
	ref := SendReference(42, "a1b2c3d4")
	assert.Equal(t, "delivery:42:a1b2c3d4", ref)

	deliveryID, stepID, ok := ParseSendReference(ref)
	assert.True(t, ok)
	assert.Equal(t, uint(42), deliveryID)
	assert.Equal(t, "a1b2c3d4", stepID)
}

func TestParseSendReferenceRejectsLegacyFormats(t *testing.T) {
	for _, ref := range []string{
		"",
		"invoice-42-reminder",
		"delivery:42",
		"delivery:42:",
		"delivery:notanumber:step",
		"reminder:42:step",
	} {
		_, _, ok := ParseSendReference(ref)
		assert.False(t, ok, "reference %q should not parse", ref)
	}
}

func TestParseSendReferenceStepIDMayContainColons(t *testing.T) {
	// SplitN keeps everything after the second colon as the step id.
	deliveryID, stepID, ok := ParseSendReference("delivery:7:a:b")
	assert.True(t, ok)
	assert.Equal(t, uint(7), deliveryID)
	assert.Equal(t, "a:b", stepID)
}

func TestScheduledSendAttempted(t *testing.T) {
	assert.False(t, (&ScheduledSend{}).Attempted())
	assert.True(t, (&ScheduledSend{Sent: true}).Attempted())
	assert.True(t, (&ScheduledSend{Skipped: true}).Attempted())
	assert.False(t, (&ScheduledSend{Canceled: true}).Attempted())
}

func TestSendParametersEqual(t *testing.T) {
	a := SendParameters{Role: "billing", Emails: []string{"x@example.com"}}
	assert.True(t, a.Equal(SendParameters{Role: "billing", Emails: []string{"x@example.com"}}))
	assert.False(t, a.Equal(SendParameters{Role: "director", Emails: []string{"x@example.com"}}))
	assert.False(t, a.Equal(SendParameters{Role: "billing"}))
	assert.False(t, a.Equal(SendParameters{Role: "billing", Emails: []string{"y@example.com"}}))
}
