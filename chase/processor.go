package chase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chaser/models"
)

// sendKey addresses one reconciliation bucket: all planned sends of a single
// step on a single channel.
type sendKey struct {
	StepID  string
	Channel models.SendChannel
}

// desiredSend is one row the current schedule says should exist.
type desiredSend struct {
	At     time.Time
	Params models.SendParameters
}

// ReconcileInput is everything one reconciliation pass depends on, resolved
// up front: the engine performs no reads beyond the store while running.
type ReconcileInput struct {
	Delivery models.Delivery
	Facts    DocumentFacts
	Channels models.ChannelSet
	Now      time.Time
}

var allChannels = []models.SendChannel{models.ChannelEmail, models.ChannelSMS, models.ChannelLetter}

// Reconcile brings the persisted planned sends of one document in line with
// the state its schedule implies. The rules, in the order they apply:
//
//   - rows whose step id is absent from the current schedule are deleted
//     unconditionally, attempted or not: a removed rule carries no future
//     obligation and should not linger;
//   - unattempted rows are edited in place so in-flight references stay
//     stable;
//   - attempted rows are never edited: when their content no longer matches,
//     a fresh row is created and linked via ReplacementID, extending the
//     chain only when something actually changed (the conservative reading;
//     chaining every pass would grow history without information);
//   - rows the desired state has no counterpart for are created;
//   - rows whose reference does not parse as (delivery, step) predate step
//     scoping and are left untouched.
//
// A disabled delivery desires nothing: its unattempted rows are canceled, not
// deleted, so re-enabling restores them in place.
//
// Running twice with unchanged inputs performs zero writes the second time,
// which is what makes the at-least-once sweep safe.
func Reconcile(ctx context.Context, store SendStore, in ReconcileInput) error {
	desired := desiredState(in)

	existing, err := store.ListByDocument(ctx, in.Delivery.DocumentID)
	if err != nil {
		return fmt.Errorf("listing planned sends: %w", err)
	}

	groups := make(map[sendKey][]models.ScheduledSend)
	for _, row := range existing {
		deliveryID, stepID, ok := models.ParseSendReference(row.Reference)
		if !ok || deliveryID != in.Delivery.ID {
			continue // legacy or foreign reference, not ours to manage
		}
		k := sendKey{StepID: stepID, Channel: row.Channel}
		groups[k] = append(groups[k], row)
	}

	// Removed steps first: every row of theirs goes, including attempted rows
	// and interior links of replacement chains.
	for k, rows := range groups {
		if in.Delivery.HasStep(k.StepID) {
			continue
		}
		for _, row := range rows {
			if err := store.Delete(ctx, row.ID); err != nil {
				return fmt.Errorf("deleting send %d of removed step %s: %w", row.ID, k.StepID, err)
			}
		}
		delete(groups, k)
	}

	// Union of buckets that still need attention, in deterministic order.
	keys := make(map[sendKey]bool, len(groups)+len(desired))
	for k := range groups {
		keys[k] = true
	}
	for k := range desired {
		keys[k] = true
	}
	ordered := make([]sendKey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].StepID != ordered[j].StepID {
			return ordered[i].StepID < ordered[j].StepID
		}
		return ordered[i].Channel < ordered[j].Channel
	})

	for _, k := range ordered {
		if err := reconcileBucket(ctx, store, in, k, desired[k], groups[k]); err != nil {
			return err
		}
	}
	return nil
}

// desiredState expands the timeline per enabled and supported channel.
// Channels the account cannot use are skipped here, never failed on.
func desiredState(in ReconcileInput) map[sendKey][]desiredSend {
	desired := make(map[sendKey][]desiredSend)
	if in.Delivery.Disabled {
		return desired
	}

	timeline := BuildTimeline(in.Facts, in.Delivery.Schedule, in.Now)
	for _, seg := range timeline {
		for _, ch := range allChannels {
			if !seg.Step.Options.ChannelEnabled(ch) || !in.Channels.Supports(ch) {
				continue
			}
			params := sendParameters(in.Delivery, seg.Step, ch)
			k := sendKey{StepID: seg.Step.ID, Channel: ch}
			for _, at := range seg.SendTimes {
				desired[k] = append(desired[k], desiredSend{At: at, Params: params})
			}
		}
	}
	return desired
}

func sendParameters(d models.Delivery, step models.ChaseStep, ch models.SendChannel) models.SendParameters {
	role := d.ContactRole
	if step.Options.Role != "" {
		role = step.Options.Role
	}
	switch ch {
	case models.ChannelEmail:
		return models.SendParameters{Role: role, Emails: append([]string(nil), d.EmailRecipients...)}
	case models.ChannelSMS:
		return models.SendParameters{Phone: d.SMSRecipient}
	default:
		return models.SendParameters{Role: role}
	}
}

// reconcileBucket aligns the rows of one (step, channel) bucket with its
// desired sends. Both sides are walked in chronological order; only leaf rows
// (ReplacementID null) participate, replaced rows are frozen history.
func reconcileBucket(ctx context.Context, store SendStore, in ReconcileInput, k sendKey, want []desiredSend, rows []models.ScheduledSend) error {
	leaves := make([]models.ScheduledSend, 0, len(rows))
	for _, row := range rows {
		if row.ReplacementID == nil {
			leaves = append(leaves, row)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		if !leaves[i].ScheduledAt.Equal(leaves[j].ScheduledAt) {
			return leaves[i].ScheduledAt.Before(leaves[j].ScheduledAt)
		}
		return leaves[i].ID < leaves[j].ID
	})

	for i, d := range want {
		if i >= len(leaves) {
			row := models.ScheduledSend{
				DocumentID:  in.Delivery.DocumentID,
				Channel:     k.Channel,
				ScheduledAt: d.At,
				Reference:   models.SendReference(in.Delivery.ID, k.StepID),
				Parameters:  d.Params,
			}
			if err := store.Create(ctx, &row); err != nil {
				return fmt.Errorf("creating send for step %s/%s: %w", k.StepID, k.Channel, err)
			}
			continue
		}

		row := leaves[i]
		matches := row.ScheduledAt.Equal(d.At) && row.Parameters.Equal(d.Params) && !row.Canceled

		if row.Attempted() {
			if matches {
				continue
			}
			replacement := models.ScheduledSend{
				DocumentID:  in.Delivery.DocumentID,
				Channel:     k.Channel,
				ScheduledAt: d.At,
				Reference:   row.Reference,
				Parameters:  d.Params,
			}
			if err := store.Create(ctx, &replacement); err != nil {
				return fmt.Errorf("creating replacement for send %d: %w", row.ID, err)
			}
			row.ReplacementID = &replacement.ID
			if err := store.Update(ctx, &row); err != nil {
				return fmt.Errorf("linking replacement for send %d: %w", row.ID, err)
			}
			continue
		}

		if !matches {
			row.ScheduledAt = d.At
			row.Parameters = d.Params
			row.Canceled = false
			if err := store.Update(ctx, &row); err != nil {
				return fmt.Errorf("updating send %d: %w", row.ID, err)
			}
		}
	}

	// Surplus leaves beyond the desired count. Attempted ones stay: the step
	// still exists and their history is real. Unattempted ones are canceled
	// when generation is suppressed entirely (disabled delivery, capability
	// lost) and deleted otherwise.
	for j := len(want); j < len(leaves); j++ {
		row := leaves[j]
		switch {
		case row.Attempted():
			// keep
		case len(want) == 0:
			if !row.Canceled {
				row.Canceled = true
				if err := store.Update(ctx, &row); err != nil {
					return fmt.Errorf("canceling send %d: %w", row.ID, err)
				}
			}
		default:
			if err := store.Delete(ctx, row.ID); err != nil {
				return fmt.Errorf("deleting surplus send %d: %w", row.ID, err)
			}
		}
	}
	return nil
}
