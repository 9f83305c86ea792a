// Package chase is the scheduling and reconciliation engine behind invoice
// chasing. It turns a document's abstract schedule into concrete send times
// and keeps the persisted planned-send rows in sync with them without
// duplicating, losing or rewriting a communication that was already attempted.
package chase

import (
	"crypto/rand"

	"chaser/models"
)

const (
	stepIDLength   = 8
	stepIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Inspect resolves step identities for a newly submitted schedule against the
// previously persisted one. A step keeps its id only when a step with that id
// existed before with identical trigger and options; any content change, and
// any id the old schedule never issued, gets a freshly generated id. Identity
// tracks content, never caller intent. Steps present only in the old schedule
// simply produce no output entry, which is how removals reach the processor.
//
// Pure structural diff: input order is preserved, input slices are not
// mutated, and no error path exists because malformed schedules are rejected
// upstream before they get here.
func Inspect(old, updated []models.ChaseStep) []models.ChaseStep {
	oldByID := make(map[string]models.ChaseStep, len(old))
	taken := make(map[string]bool, len(old)+len(updated))
	for _, s := range old {
		oldByID[s.ID] = s
		taken[s.ID] = true
	}

	out := make([]models.ChaseStep, 0, len(updated))
	for _, s := range updated {
		prev, known := oldByID[s.ID]
		switch {
		case s.ID == "":
			s.ID = newStepID(taken)
		case known && prev.SameContent(s):
			// unchanged, identity survives
		default:
			s.ID = newStepID(taken)
		}
		taken[s.ID] = true
		out = append(out, s)
	}
	return out
}

// newStepID generates a random fixed-length alphanumeric identity, retrying
// on the (vanishingly rare) collision with an id already seen in this call.
func newStepID(taken map[string]bool) string {
	for {
		buf := make([]byte, stepIDLength)
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// nothing sensible to degrade to here.
			panic(err)
		}
		for i, b := range buf {
			buf[i] = stepIDAlphabet[int(b)%len(stepIDAlphabet)]
		}
		id := string(buf)
		if !taken[id] {
			return id
		}
	}
}
