package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChaseStepSameContent(t *testing.T) {
	base := ChaseStep{ID: "aaaa", Trigger: TriggerAfterDue, Options: StepOptions{Hour: 10, Days: 3, Email: true}}

	same := base
	same.ID = "bbbb" // identity is not content
	assert.True(t, base.SameContent(same))

	changed := base
	changed.Options.Days = 5
	assert.False(t, base.SameContent(changed))

	changed = base
	changed.Trigger = TriggerBeforeDue
	assert.False(t, base.SameContent(changed))

	changed = base
	changed.Options.SMS = true
	assert.False(t, base.SameContent(changed))
}

func TestStepOptionsEqualDates(t *testing.T) {
	d1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	assert.True(t, StepOptions{Date: &d1}.Equal(StepOptions{Date: &d1}))
	assert.False(t, StepOptions{Date: &d1}.Equal(StepOptions{Date: &d2}))
	assert.False(t, StepOptions{Date: &d1}.Equal(StepOptions{}))
	assert.True(t, StepOptions{}.Equal(StepOptions{}))
}

func TestDeliveryDocumentBackReference(t *testing.T) {
	doc := Document{Number: "INV-100"}
	doc.Delivery = Delivery{DocumentID: 1, Document: &doc}

	assert.Equal(t, "INV-100", doc.Delivery.Document.Number)
}

func TestDeliveryStepLookup(t *testing.T) {
	d := Delivery{Schedule: []ChaseStep{
		{ID: "aaaa", Trigger: TriggerOnIssue, Options: StepOptions{Hour: 10, Email: true}},
		{ID: "bbbb", Trigger: TriggerAfterDue, Options: StepOptions{Hour: 10, Days: 3, Email: true}},
	}}

	step, ok := d.StepByID("bbbb")
	assert.True(t, ok)
	assert.Equal(t, TriggerAfterDue, step.Trigger)

	assert.True(t, d.HasStep("aaaa"))
	assert.False(t, d.HasStep("cccc"))
}
