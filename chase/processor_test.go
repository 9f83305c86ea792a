package chase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chaser/models"
)

// fakeSendStore keeps planned sends in memory and counts every write, so
// tests can assert not just on final state but on how many mutations it took
// to get there.
type fakeSendStore struct {
	rows   map[uint]models.ScheduledSend
	nextID uint

	creates int
	updates int
	deletes int
}

func newFakeSendStore() *fakeSendStore {
	return &fakeSendStore{rows: make(map[uint]models.ScheduledSend), nextID: 1}
}

func (f *fakeSendStore) ListByDocument(_ context.Context, documentID uint) ([]models.ScheduledSend, error) {
	var out []models.ScheduledSend
	for _, row := range f.rows {
		if row.DocumentID == documentID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSendStore) Create(_ context.Context, send *models.ScheduledSend) error {
	send.ID = f.nextID
	f.nextID++
	f.rows[send.ID] = *send
	f.creates++
	return nil
}

func (f *fakeSendStore) Update(_ context.Context, send *models.ScheduledSend) error {
	f.rows[send.ID] = *send
	f.updates++
	return nil
}

func (f *fakeSendStore) Delete(_ context.Context, id uint) error {
	delete(f.rows, id)
	f.deletes++
	return nil
}

func (f *fakeSendStore) writes() int {
	return f.creates + f.updates + f.deletes
}

func (f *fakeSendStore) resetCounts() {
	f.creates, f.updates, f.deletes = 0, 0, 0
}

func (f *fakeSendStore) all() []models.ScheduledSend {
	var out []models.ScheduledSend
	for _, row := range f.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func gormModel(id uint) gorm.Model {
	return gorm.Model{ID: id}
}

func (f *fakeSendStore) byChannel(ch models.SendChannel) []models.ScheduledSend {
	var out []models.ScheduledSend
	for _, row := range f.all() {
		if row.Channel == ch {
			out = append(out, row)
		}
	}
	return out
}

func testInput(delivery models.Delivery) ReconcileInput {
	return ReconcileInput{
		Delivery: delivery,
		Facts: DocumentFacts{
			IssueDate: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
			DueDate:   dayPtr(2026, 3, 12),
			Location:  time.UTC,
		},
		Channels: models.ChannelSet{Email: true, SMS: true, Letter: true},
		Now:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconcileCreatesAndIsIdempotent(t *testing.T) {
	store := newFakeSendStore()
	in := testInput(models.Delivery{
		Model:      gormModel(5),
		DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true, SMS: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	require.Len(t, store.byChannel(models.ChannelEmail), 1)
	require.Len(t, store.byChannel(models.ChannelSMS), 1)
	assert.Empty(t, store.byChannel(models.ChannelLetter))
	assert.Equal(t, 2, store.creates)

	email := store.byChannel(models.ChannelEmail)[0]
	assert.Equal(t, uint(77), email.DocumentID)
	assert.Equal(t, "delivery:5:s1", email.Reference)
	assert.Equal(t, time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC), email.ScheduledAt)

	// Second pass with identical inputs must not touch the store.
	store.resetCounts()
	require.NoError(t, Reconcile(context.Background(), store, in))
	assert.Zero(t, store.writes())
	assert.Len(t, store.all(), 2)
}

func TestReconcileRemovedStepDeletesAllRows(t *testing.T) {
	store := newFakeSendStore()
	sentAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.rows[1] = models.ScheduledSend{
		Model: gormModel(1), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt, Reference: "delivery:5:gone",
		Sent: true, SentAt: &sentAt,
	}
	store.rows[2] = models.ScheduledSend{
		Model: gormModel(2), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt.AddDate(0, 0, 7), Reference: "delivery:5:gone",
	}
	store.nextID = 3

	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	// Both rows of the removed step are gone, the sent one included, and the
	// remaining step got its row.
	assert.Equal(t, 2, store.deletes)
	rows := store.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "delivery:5:s1", rows[0].Reference)
}

func TestReconcileUpdatesUnattemptedInPlace(t *testing.T) {
	store := newFakeSendStore()
	store.rows[9] = models.ScheduledSend{
		Model: gormModel(9), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Reference:   "delivery:5:s1",
	}
	store.nextID = 10

	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 15, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	assert.Zero(t, store.creates)
	assert.Zero(t, store.deletes)
	assert.Equal(t, 1, store.updates)
	rows := store.all()
	require.Len(t, rows, 1)
	assert.Equal(t, uint(9), rows[0].ID)
	assert.Equal(t, time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC), rows[0].ScheduledAt)
}

func TestReconcileReplacesAttemptedRow(t *testing.T) {
	store := newFakeSendStore()
	sentAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	store.rows[9] = models.ScheduledSend{
		Model: gormModel(9), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt, Reference: "delivery:5:s1",
		Sent: true, SentAt: &sentAt,
	}
	store.nextID = 10

	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 15, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	rows := store.all()
	require.Len(t, rows, 2)

	original := store.rows[9]
	assert.True(t, original.Sent)
	assert.Equal(t, sentAt, original.ScheduledAt)
	require.NotNil(t, original.ReplacementID)

	replacement := store.rows[*original.ReplacementID]
	assert.False(t, replacement.Sent)
	assert.Nil(t, replacement.ReplacementID)
	assert.Equal(t, original.Reference, replacement.Reference)
	assert.Equal(t, time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC), replacement.ScheduledAt)

	// With the chain extended, a further unchanged pass is a no-op: the leaf
	// already matches and the replaced row is frozen.
	store.resetCounts()
	require.NoError(t, Reconcile(context.Background(), store, in))
	assert.Zero(t, store.writes())
}

func TestReconcileAttemptedAndMatchingIsUntouched(t *testing.T) {
	store := newFakeSendStore()
	sentAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.rows[9] = models.ScheduledSend{
		Model: gormModel(9), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt, Reference: "delivery:5:s1",
		Sent: true, SentAt: &sentAt,
	}
	store.nextID = 10

	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))
	assert.Zero(t, store.writes())
}

func TestReconcileLeavesLegacyReferencesAlone(t *testing.T) {
	store := newFakeSendStore()
	store.rows[1] = models.ScheduledSend{
		Model: gormModel(1), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Reference:   "invoice-77-reminder",
	}
	store.rows[2] = models.ScheduledSend{
		Model: gormModel(2), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Reference:   "delivery:999:s1", // another delivery's row
	}
	store.nextID = 3

	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	assert.Zero(t, store.deletes)
	assert.Zero(t, store.updates)
	assert.Equal(t, 1, store.creates)
	assert.Len(t, store.all(), 3)
}

func TestReconcileDisabledDeliveryCancelsUnattempted(t *testing.T) {
	store := newFakeSendStore()
	sentAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.rows[1] = models.ScheduledSend{
		Model: gormModel(1), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt, Reference: "delivery:5:s1",
		Sent: true, SentAt: &sentAt,
	}
	store.rows[2] = models.ScheduledSend{
		Model: gormModel(2), DocumentID: 77, Channel: models.ChannelEmail,
		ScheduledAt: sentAt.AddDate(0, 0, 7), Reference: "delivery:5:s2",
	}
	store.nextID = 3

	delivery := models.Delivery{
		Model: gormModel(5), DocumentID: 77, Disabled: true,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true}),
			step("s2", models.TriggerAfterDue, models.StepOptions{Hour: 12, Days: 7, Email: true}),
		},
	}

	require.NoError(t, Reconcile(context.Background(), store, testInput(delivery)))

	assert.Zero(t, store.deletes)
	assert.True(t, store.rows[2].Canceled)
	assert.False(t, store.rows[1].Canceled) // attempted history stays as-is

	// Re-enabling restores the canceled row in place: same id, canceled off.
	delivery.Disabled = false
	store.resetCounts()
	require.NoError(t, Reconcile(context.Background(), store, testInput(delivery)))
	assert.Zero(t, store.creates)
	assert.False(t, store.rows[2].Canceled)
}

func TestReconcileSkipsUnsupportedChannels(t *testing.T) {
	store := newFakeSendStore()
	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true, SMS: true}),
		},
	})
	in.Channels = models.ChannelSet{Email: true} // tenant has no SMS capability

	require.NoError(t, Reconcile(context.Background(), store, in))

	assert.Len(t, store.byChannel(models.ChannelEmail), 1)
	assert.Empty(t, store.byChannel(models.ChannelSMS))
}

func TestReconcileRepeaterCreatesOneRowPerRepeat(t *testing.T) {
	store := newFakeSendStore()
	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerRepeater, models.StepOptions{Hour: 11, Days: 7, Repeats: 3, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	rows := store.byChannel(models.ChannelEmail)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "delivery:5:s1", row.Reference)
	}
}

func TestReconcileStepRoleOverridesDeliveryRole(t *testing.T) {
	store := newFakeSendStore()
	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77, ContactRole: "billing",
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerOnIssue, models.StepOptions{Hour: 12, Email: true, Role: "director"}),
			step("s2", models.TriggerAfterDue, models.StepOptions{Hour: 12, Days: 3, Email: true}),
		},
	})

	require.NoError(t, Reconcile(context.Background(), store, in))

	byRef := make(map[string]models.ScheduledSend)
	for _, row := range store.all() {
		byRef[row.Reference] = row
	}
	assert.Equal(t, "director", byRef["delivery:5:s1"].Parameters.Role)
	assert.Equal(t, "billing", byRef["delivery:5:s2"].Parameters.Role)
}

func TestReconcileSurplusUnattemptedRowsDeleted(t *testing.T) {
	// Repeats shrank from 3 to 1: the two extra unattempted rows go away.
	store := newFakeSendStore()
	in := testInput(models.Delivery{
		Model: gormModel(5), DocumentID: 77,
		Schedule: []models.ChaseStep{
			step("s1", models.TriggerRepeater, models.StepOptions{Hour: 11, Days: 7, Repeats: 3, Email: true}),
		},
	})
	require.NoError(t, Reconcile(context.Background(), store, in))
	require.Len(t, store.all(), 3)

	in.Delivery.Schedule[0].Options.Repeats = 1
	store.resetCounts()
	require.NoError(t, Reconcile(context.Background(), store, in))

	assert.Equal(t, 2, store.deletes)
	assert.Len(t, store.all(), 1)
}
