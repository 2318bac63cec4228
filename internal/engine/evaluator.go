package engine

import (
	"time"

	"github.com/gestionvital/prospector/internal/lead"
)

// Candidate pairs a lead index with the sequence step to attempt next.
// The index points into the slice passed to Eligible so the runner can
// mutate the record in place.
type Candidate struct {
	Index int
	Step  int
}

// Eligible computes the candidate set for one cycle. It is a pure function
// of the records, the clock and the policy; it never mutates its input.
//
// Rules, in order:
//   - closed gate: empty result, whole cycle idle
//   - Scheduled/Rejected: never selected
//   - contacted today: skipped regardless of cooldown (same-day guard)
//   - Contacted below the last step: next step once the cooldown elapsed
//   - Error: same step retried once the cooldown elapsed; an unparsable
//     timestamp waits (fail closed), an empty one retries immediately
//   - New: step 1, no waiting
//
// Finished falls through every branch and is implicitly excluded.
func Eligible(leads []lead.Lead, now time.Time, p Policy) []Candidate {
	if !p.GateOpen(now) {
		return nil
	}

	loc := p.loc()
	local := now.In(loc)

	var out []Candidate
	for i, l := range leads {
		if l.Status == lead.StatusScheduled || l.Status == lead.StatusRejected {
			continue
		}
		if l.ContactedOn(local, loc) {
			continue
		}

		switch l.Status {
		case lead.StatusContacted, lead.StatusError:
			// The step only advances on success, so sequenceStep+1 is
			// the next step for Contacted and the retried step for Error.
			if l.SequenceStep >= p.MaxStep {
				continue
			}
			if !cooldownElapsed(l, local, loc, p.Cooldown) {
				continue
			}
			out = append(out, Candidate{Index: i, Step: l.SequenceStep + 1})

		case lead.StatusNew:
			out = append(out, Candidate{Index: i, Step: 1})
		}
	}
	return out
}

// cooldownElapsed reports whether enough time passed since the last
// contact. An empty timestamp means never contacted (elapsed); a present
// but unparsable one means unknown, which is treated as not elapsed.
func cooldownElapsed(l lead.Lead, now time.Time, loc *time.Location, cooldown time.Duration) bool {
	if l.LastContactAt == "" {
		return true
	}
	last, ok := l.LastContact(loc)
	if !ok {
		return false
	}
	return now.Sub(last) >= cooldown
}
