package engine

import (
	"testing"
	"time"

	"github.com/gestionvital/prospector/internal/lead"
)

// tuesday10 is a Tuesday at 10:00, inside the default window.
var tuesday10 = time.Date(2026, 3, 17, 10, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Location = time.UTC
	return p
}

func stamp(t time.Time) string {
	return t.Format(lead.ContactTimeLayout)
}

func TestEligibleGateClosed(t *testing.T) {
	p := testPolicy()
	leads := []lead.Lead{{ID: "a", Status: lead.StatusNew}}

	tests := []struct {
		name string
		now  time.Time
	}{
		{"sunday", time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)},
		{"before window", time.Date(2026, 3, 17, 8, 59, 0, 0, time.UTC)},
		{"after window", time.Date(2026, 3, 17, 20, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(leads, tt.now, p); got != nil {
				t.Errorf("Eligible = %v, want nil", got)
			}
		})
	}
}

func TestEligiblePerStatus(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		name     string
		lead     lead.Lead
		wantStep int // 0 = excluded
	}{
		{"new never contacted", lead.Lead{Status: lead.StatusNew}, 1},
		{"new contacted today excluded",
			lead.Lead{Status: lead.StatusNew, LastContactAt: stamp(tuesday10.Add(-2 * time.Hour))}, 0},
		{"contacted cooldown elapsed",
			lead.Lead{Status: lead.StatusContacted, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-30 * time.Hour))}, 2},
		{"contacted cooldown pending",
			lead.Lead{Status: lead.StatusContacted, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-23 * time.Hour))}, 0},
		{"contacted exactly at cooldown",
			lead.Lead{Status: lead.StatusContacted, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-24 * time.Hour))}, 2},
		{"contacted at final step excluded",
			lead.Lead{Status: lead.StatusContacted, SequenceStep: 3, LastContactAt: stamp(tuesday10.Add(-72 * time.Hour))}, 0},
		{"error retries same step",
			lead.Lead{Status: lead.StatusError, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-30 * time.Hour))}, 2},
		{"error on first step retries step one",
			lead.Lead{Status: lead.StatusError, SequenceStep: 0, LastContactAt: stamp(tuesday10.Add(-30 * time.Hour))}, 1},
		{"error cooldown pending",
			lead.Lead{Status: lead.StatusError, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-1 * time.Hour))}, 0},
		{"error unparsable timestamp waits",
			lead.Lead{Status: lead.StatusError, SequenceStep: 1, LastContactAt: "yesterday-ish"}, 0},
		{"error empty timestamp immediate",
			lead.Lead{Status: lead.StatusError, SequenceStep: 0}, 1},
		{"rejected excluded",
			lead.Lead{Status: lead.StatusRejected, LastContactAt: stamp(tuesday10.Add(-200 * time.Hour))}, 0},
		{"scheduled excluded",
			lead.Lead{Status: lead.StatusScheduled}, 0},
		{"finished excluded",
			lead.Lead{Status: lead.StatusFinished, SequenceStep: 3, LastContactAt: stamp(tuesday10.Add(-200 * time.Hour))}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eligible([]lead.Lead{tt.lead}, tuesday10, p)
			if tt.wantStep == 0 {
				if len(got) != 0 {
					t.Fatalf("expected exclusion, got %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected one candidate, got %+v", got)
			}
			if got[0].Step != tt.wantStep {
				t.Errorf("step = %d, want %d", got[0].Step, tt.wantStep)
			}
		})
	}
}

func TestEligibleSameDayGuardBeatsCooldown(t *testing.T) {
	p := testPolicy()
	p.Cooldown = time.Hour

	// Contacted this morning, cooldown long elapsed, still excluded.
	l := lead.Lead{
		Status:        lead.StatusContacted,
		SequenceStep:  1,
		LastContactAt: stamp(tuesday10.Add(-5 * time.Hour)),
	}
	if got := Eligible([]lead.Lead{l}, tuesday10, p); len(got) != 0 {
		t.Errorf("same-day guard did not take precedence: %+v", got)
	}
}

func TestEligibleEmitsEachRecordOnce(t *testing.T) {
	p := testPolicy()
	leads := []lead.Lead{
		{ID: "a", Status: lead.StatusNew},
		{ID: "b", Status: lead.StatusContacted, SequenceStep: 1, LastContactAt: stamp(tuesday10.Add(-48 * time.Hour))},
		{ID: "c", Status: lead.StatusRejected},
	}

	got := Eligible(leads, tuesday10, p)
	seen := map[int]bool{}
	for _, c := range got {
		if seen[c.Index] {
			t.Fatalf("index %d emitted twice", c.Index)
		}
		seen[c.Index] = true
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2", len(got))
	}
}

func TestEligibleDoesNotMutateInput(t *testing.T) {
	p := testPolicy()
	leads := []lead.Lead{{ID: "a", Status: lead.StatusNew}}
	before := leads[0]
	Eligible(leads, tuesday10, p)
	if leads[0] != before {
		t.Error("Eligible mutated its input")
	}
}
