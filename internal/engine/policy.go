// Package engine contains the eligibility evaluator and the cycle runner:
// the rules that decide who gets the next sequence message, and the loop
// that delivers it without tripping the messaging provider's abuse limits.
package engine

import (
	"time"
)

// Policy gathers every tunable gating and pacing rule in one place. The
// historical deployment variants differed only in these values.
type Policy struct {
	// AllowedWeekdays gates the whole cycle by day of week.
	AllowedWeekdays map[time.Weekday]bool
	// HourStart/HourEnd bound the sending window, inclusive on both ends.
	HourStart int
	HourEnd   int
	// Cooldown is the minimum elapsed time between two attempts for the
	// same lead. Strict duration, not calendar days.
	Cooldown time.Duration
	// MaxStep is the length of the message sequence.
	MaxStep int
	// MaxPerCycle caps delivery attempts in one invocation.
	MaxPerCycle int
	// DelayMin/DelayMax bound the randomized pause between messages.
	DelayMin time.Duration
	DelayMax time.Duration
	// Location is the campaign's business timezone.
	Location *time.Location
}

// DefaultPolicy is the campaign as historically run: Monday–Saturday,
// 09:00–19:59, 24h cooldown, 3-step sequence, 20 sends per cycle, 2–5
// minutes between messages.
func DefaultPolicy() Policy {
	return Policy{
		AllowedWeekdays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
			time.Saturday:  true,
		},
		HourStart:   9,
		HourEnd:     19,
		Cooldown:    24 * time.Hour,
		MaxStep:     3,
		MaxPerCycle: 20,
		DelayMin:    2 * time.Minute,
		DelayMax:    5 * time.Minute,
		Location:    time.Local,
	}
}

// GateOpen reports whether now falls inside the allowed weekday and hour
// window. Checked once per cycle; a closed gate makes the whole invocation
// a no-op, including discovery.
func (p Policy) GateOpen(now time.Time) bool {
	local := now
	if p.Location != nil {
		local = now.In(p.Location)
	}
	if !p.AllowedWeekdays[local.Weekday()] {
		return false
	}
	h := local.Hour()
	return h >= p.HourStart && h <= p.HourEnd
}

// loc returns the policy timezone, defaulting to the system zone.
func (p Policy) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}
