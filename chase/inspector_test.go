package chase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaser/models"
)

func step(id string, trigger models.ChaseTrigger, opts models.StepOptions) models.ChaseStep {
	return models.ChaseStep{ID: id, Trigger: trigger, Options: opts}
}

func TestInspectKeepsIdentityForUnchangedSteps(t *testing.T) {
	old := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true}),
		step("bbbbbbbb", models.TriggerAfterDue, models.StepOptions{Hour: 9, Days: 3, Email: true}),
	}

	out := Inspect(old, old)

	require.Len(t, out, 2)
	assert.Equal(t, "aaaaaaaa", out[0].ID)
	assert.Equal(t, "bbbbbbbb", out[1].ID)
}

func TestInspectRegeneratesIdentityOnContentChange(t *testing.T) {
	old := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerAfterDue, models.StepOptions{Hour: 9, Days: 3, Email: true}),
	}
	updated := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerAfterDue, models.StepOptions{Hour: 9, Days: 5, Email: true}),
	}

	out := Inspect(old, updated)

	require.Len(t, out, 1)
	assert.NotEqual(t, "aaaaaaaa", out[0].ID)
	assert.Len(t, out[0].ID, stepIDLength)
}

func TestInspectGeneratesIdentityForNewSteps(t *testing.T) {
	updated := []models.ChaseStep{
		step("", models.TriggerOnIssue, models.StepOptions{Hour: 8, Email: true}),
		step("", models.TriggerAfterDue, models.StepOptions{Hour: 8, Days: 7, SMS: true}),
	}

	out := Inspect(nil, updated)

	require.Len(t, out, 2)
	for _, s := range out {
		assert.Len(t, s.ID, stepIDLength)
		for _, r := range s.ID {
			assert.Contains(t, stepIDAlphabet, string(r))
		}
	}
	assert.NotEqual(t, out[0].ID, out[1].ID)
}

func TestInspectRejectsUnknownIdentity(t *testing.T) {
	// An id the old schedule never issued is not trusted, even with content
	// that looks plausible.
	updated := []models.ChaseStep{
		step("intruder", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true}),
	}

	out := Inspect(nil, updated)

	require.Len(t, out, 1)
	assert.NotEqual(t, "intruder", out[0].ID)
}

func TestInspectChannelChangeIsContentChange(t *testing.T) {
	old := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true}),
	}
	updated := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true, SMS: true}),
	}

	out := Inspect(old, updated)

	require.Len(t, out, 1)
	assert.NotEqual(t, "aaaaaaaa", out[0].ID)
}

func TestInspectReorderPreservesIdentities(t *testing.T) {
	a := step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true})
	b := step("bbbbbbbb", models.TriggerAfterDue, models.StepOptions{Hour: 9, Days: 3, Email: true})

	out := Inspect([]models.ChaseStep{a, b}, []models.ChaseStep{b, a})

	require.Len(t, out, 2)
	assert.Equal(t, "bbbbbbbb", out[0].ID)
	assert.Equal(t, "aaaaaaaa", out[1].ID)
}

func TestInspectDropsRemovedSteps(t *testing.T) {
	old := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true}),
		step("bbbbbbbb", models.TriggerAfterDue, models.StepOptions{Hour: 9, Days: 3, Email: true}),
	}
	updated := []models.ChaseStep{old[1]}

	out := Inspect(old, updated)

	require.Len(t, out, 1)
	assert.Equal(t, "bbbbbbbb", out[0].ID)
}

func TestInspectDateComparedByInstant(t *testing.T) {
	utc := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerAbsolute, models.StepOptions{Hour: 10, Date: &utc, Email: true}),
	}
	same := utc
	updated := []models.ChaseStep{
		step("aaaaaaaa", models.TriggerAbsolute, models.StepOptions{Hour: 10, Date: &same, Email: true}),
	}

	out := Inspect(old, updated)

	require.Len(t, out, 1)
	assert.Equal(t, "aaaaaaaa", out[0].ID)
}

func TestInspectEmptySchedule(t *testing.T) {
	assert.Empty(t, Inspect(nil, nil))
	assert.Empty(t, Inspect([]models.ChaseStep{
		step("aaaaaaaa", models.TriggerOnIssue, models.StepOptions{Hour: 10, Email: true}),
	}, nil))
}
