package chase

import (
	"sort"
	"time"

	"chaser/models"
)

// DocumentFacts is the slice of a document the timeline depends on. The
// current time is passed separately so the builder stays a pure function that
// tests can pin.
type DocumentFacts struct {
	IssueDate time.Time
	DueDate   *time.Time
	Location  *time.Location
}

func (f DocumentFacts) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// dueAnchor is the date arithmetic anchor for due-relative triggers. A
// document without a due date degrades to the issue date rather than blocking
// its whole chase process.
func (f DocumentFacts) dueAnchor() time.Time {
	if f.DueDate != nil {
		return *f.DueDate
	}
	return f.IssueDate
}

// Segment pairs one schedule step with the concrete times it fires at,
// ascending. Every trigger yields exactly one time except Repeater, which
// yields one per repeat.
type Segment struct {
	Step      models.ChaseStep
	SendTimes []time.Time
}

// Earliest returns the segment's first send time.
func (s Segment) Earliest() time.Time {
	return s.SendTimes[0]
}

// Timeline is the fully resolved calendar for one schedule: one segment per
// step, ordered by each segment's earliest send time.
type Timeline []Segment

// BuildTimeline converts an identified schedule into concrete send times.
// All times land on the step's configured hour with minutes and seconds
// zeroed, in the document's timezone. Deterministic and side-effect free for
// fixed inputs and a fixed now.
func BuildTimeline(facts DocumentFacts, schedule []models.ChaseStep, now time.Time) Timeline {
	loc := facts.location()

	segments := make(Timeline, 0, len(schedule))

	// Non-repeating steps first: the repeater anchors on the latest of them.
	var latest time.Time
	var repeaters []models.ChaseStep
	for _, step := range schedule {
		if step.Trigger == models.TriggerRepeater {
			repeaters = append(repeaters, step)
			continue
		}
		at := singleSendTime(facts, step, loc)
		if at.After(latest) {
			latest = at
		}
		segments = append(segments, Segment{Step: step, SendTimes: []time.Time{at}})
	}

	for _, step := range repeaters {
		segments = append(segments, Segment{
			Step:      step,
			SendTimes: repeaterSendTimes(facts, step, latest, now, loc),
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Earliest().Before(segments[j].Earliest())
	})
	return segments
}

func singleSendTime(facts DocumentFacts, step models.ChaseStep, loc *time.Location) time.Time {
	opts := step.Options
	switch step.Trigger {
	case models.TriggerOnIssue:
		// Never clamped to now: an issue date in the past yields an overdue,
		// unsent send for the processor to persist as-is.
		return atHour(facts.IssueDate, opts.Hour, loc)
	case models.TriggerBeforeDue:
		at := atHour(facts.dueAnchor().AddDate(0, 0, -opts.Days), opts.Hour, loc)
		if issue := atHour(facts.IssueDate, opts.Hour, loc); at.Before(issue) {
			return issue
		}
		return at
	case models.TriggerAfterDue:
		return atHour(facts.dueAnchor().AddDate(0, 0, opts.Days), opts.Hour, loc)
	case models.TriggerAfterIssue:
		return atHour(facts.IssueDate.AddDate(0, 0, opts.Days), opts.Hour, loc)
	case models.TriggerAbsolute:
		return atHour(*opts.Date, opts.Hour, loc)
	}
	// Unknown triggers cannot reach the engine; validation rejects them.
	return atHour(facts.IssueDate, opts.Hour, loc)
}

// repeaterSendTimes computes the repeat sequence. The anchor is the later of
// now and the end of the schedule's non-repeating portion (falling back to
// the due date, then the issue date, for schedules with no other steps), so a
// stale due date restarts the sequence relative to the present instead of
// drifting into history.
func repeaterSendTimes(facts DocumentFacts, step models.ChaseStep, latestNonRepeating time.Time, now time.Time, loc *time.Location) []time.Time {
	opts := step.Options

	anchor := latestNonRepeating
	if anchor.IsZero() {
		anchor = facts.dueAnchor()
	}
	if now.After(anchor) {
		anchor = now
	}

	repeats := opts.Repeats
	if repeats < 1 {
		repeats = 1
	}
	times := make([]time.Time, 0, repeats)
	for i := 1; i <= repeats; i++ {
		times = append(times, atHour(anchor.AddDate(0, 0, opts.Days*i), opts.Hour, loc))
	}
	return times
}

// atHour places a timestamp on the given calendar day at hour:00:00 in loc.
func atHour(day time.Time, hour int, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}
