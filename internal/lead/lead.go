// Package lead defines the prospect record model shared by the store,
// the eligibility engine and the dashboard API.
package lead

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Status is the lifecycle state of a prospect.
type Status string

const (
	// StatusNew marks a freshly discovered prospect, never contacted.
	StatusNew Status = "New"
	// StatusContacted marks a prospect mid-sequence.
	StatusContacted Status = "Contacted"
	// StatusScheduled is terminal: an appointment was booked.
	StatusScheduled Status = "Scheduled"
	// StatusRejected is terminal: the prospect opted out.
	StatusRejected Status = "Rejected"
	// StatusFinished is terminal: the sequence ran to its last step.
	StatusFinished Status = "Finished"
	// StatusError marks a failed delivery attempt; the record re-enters
	// the pool after the cooldown, at the same sequence step.
	StatusError Status = "Error"
)

// Terminal reports whether a status permanently excludes the record from
// evaluation. Note StatusFinished is excluded by the step bound instead,
// and StatusError is recoverable.
func (s Status) Terminal() bool {
	return s == StatusScheduled || s == StatusRejected || s == StatusFinished
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusScheduled, StatusRejected, StatusFinished, StatusError:
		return true
	}
	return false
}

// ContactTimeLayout is the wire format of LastContactAt in the store.
const ContactTimeLayout = "02/01/2006 15:04"

// Lead is one prospect row.
type Lead struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	Category      string `json:"category"`
	Status        Status `json:"status"`
	Phone         string `json:"phone"`
	LastContactAt string `json:"last_contact_at"` // ContactTimeLayout, empty = never
	SequenceStep  int    `json:"sequence_step"`
}

// LastContact parses LastContactAt in the given location. The boolean is
// false when the field is empty or unparsable.
func (l Lead) LastContact(loc *time.Location) (time.Time, bool) {
	if strings.TrimSpace(l.LastContactAt) == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(ContactTimeLayout, strings.TrimSpace(l.LastContactAt), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ContactedOn reports whether the record's last contact falls on the same
// calendar day as now. Unparsable timestamps count as not-today; the
// cooldown check handles those conservatively.
func (l Lead) ContactedOn(now time.Time, loc *time.Location) bool {
	last, ok := l.LastContact(loc)
	if !ok {
		return false
	}
	y1, m1, d1 := last.Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// MarkContacted records a successful delivery of step at now, finishing the
// sequence when step reaches maxStep.
func (l *Lead) MarkContacted(step, maxStep int, now time.Time) {
	if step >= maxStep {
		l.Status = StatusFinished
	} else {
		l.Status = StatusContacted
	}
	l.SequenceStep = step
	l.LastContactAt = now.Format(ContactTimeLayout)
}

// MarkFailed records a failed delivery attempt at now. The sequence step is
// untouched so the next eligible cycle retries the same step.
func (l *Lead) MarkFailed(now time.Time) {
	l.Status = StatusError
	l.LastContactAt = now.Format(ContactTimeLayout)
}

// PhoneRule describes how destination numbers are normalized.
type PhoneRule struct {
	// CountryPrefix is prepended when the number is in domestic format.
	CountryPrefix string
	// LocalLength is the digit count of a domestic mobile number.
	LocalLength int
	// DedupeDigits is how many trailing digits identify a number for
	// duplicate detection (prefix variants collapse to the same key).
	DedupeDigits int
}

// DefaultPhoneRule targets Chilean mobiles: 9 local digits, +56 prefix.
func DefaultPhoneRule() PhoneRule {
	return PhoneRule{CountryPrefix: "56", LocalLength: 9, DedupeDigits: 8}
}

// Normalize strips non-digits and prepends the country prefix when the raw
// number looks domestic. An error means the number is not dialable.
func (r PhoneRule) Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, c := range raw {
		if unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("phone %q has no digits", raw)
	}
	if len(digits) == r.LocalLength {
		digits = r.CountryPrefix + digits
	}
	return digits, nil
}

// DedupeKey reduces a phone number to its significant suffix. Numbers too
// short to carry the suffix are returned whole.
func (r PhoneRule) DedupeKey(raw string) string {
	normalized, err := r.Normalize(raw)
	if err != nil {
		return ""
	}
	if len(normalized) <= r.DedupeDigits {
		return normalized
	}
	return normalized[len(normalized)-r.DedupeDigits:]
}
