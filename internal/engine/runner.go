package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gestionvital/prospector/internal/lead"
)

// Store is the durable lead collection the runner reads and writes.
type Store interface {
	Load() ([]lead.Lead, error)
	Save(leads []lead.Lead) error
}

// Gateway delivers messages through the external messaging provider.
// Implementations own no state; a non-nil error is a delivery failure.
type Gateway interface {
	SendText(ctx context.Context, destination, body string) error
	SendDocument(ctx context.Context, destination string, data []byte, filename, caption string) error
}

// Composer produces the message body for a sequence step.
type Composer interface {
	Compose(name, location string, step int) (string, error)
}

// Supplier finds new prospects. It is only consulted when a cycle has no
// eligible candidates.
type Supplier interface {
	FindNew(ctx context.Context, category, region string) ([]lead.Lead, error)
}

// Clock abstracts current business time so cycles are testable.
type Clock interface {
	Now() time.Time
}

// clockFunc adapts a function to the Clock interface.
type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock reading the wall clock.
func SystemClock() Clock { return clockFunc(time.Now) }

// Stats summarizes one cycle for logging and the dashboard.
type Stats struct {
	Gated      bool `json:"gated"`
	Candidates int  `json:"candidates"`
	Attempted  int  `json:"attempted"`
	Succeeded  int  `json:"succeeded"`
	Failed     int  `json:"failed"`
	Discovered int  `json:"discovered"`
}

// Attachment is an optional document sent after a successful first-step
// message. Content is loaded once at startup, outside the engine.
type Attachment struct {
	Data     []byte
	Filename string
	Caption  string
}

// Runner executes one delivery cycle. It is strictly sequential: one pass,
// no parallel sends. Throughput is capped by MaxPerCycle and the
// inter-message delay so the sending account is not flagged for automation.
type Runner struct {
	store      Store
	gateway    Gateway
	composer   Composer
	supplier   Supplier
	clock      Clock
	policy     Policy
	phoneRule  lead.PhoneRule
	attachment *Attachment

	// Discovery query, forwarded to the supplier.
	category string
	region   string

	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSupplier enables discovery when a cycle finds no candidates.
func WithSupplier(s Supplier, category, region string) RunnerOption {
	return func(r *Runner) {
		r.supplier = s
		r.category = category
		r.region = region
	}
}

// WithAttachment sets the document delivered after step-1 messages.
func WithAttachment(a Attachment) RunnerOption {
	return func(r *Runner) { r.attachment = &a }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithPhoneRule overrides the destination normalization rule.
func WithPhoneRule(rule lead.PhoneRule) RunnerOption {
	return func(r *Runner) { r.phoneRule = rule }
}

// WithRand seeds candidate shuffling and delay jitter deterministically.
func WithRand(rnd *rand.Rand) RunnerOption {
	return func(r *Runner) { r.rnd = rnd }
}

// NewRunner wires a cycle runner.
func NewRunner(store Store, gateway Gateway, composer Composer, policy Policy, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     store,
		gateway:   gateway,
		composer:  composer,
		clock:     SystemClock(),
		policy:    policy,
		phoneRule: lead.DefaultPhoneRule(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle performs one invocation: load, evaluate, deliver, reconcile.
// A returned error means the cycle aborted on a persistence failure; the
// stats still reflect whatever completed before the abort.
func (r *Runner) RunCycle(ctx context.Context) (Stats, error) {
	var stats Stats

	now := r.clock.Now().In(r.policy.loc())
	if !r.policy.GateOpen(now) {
		log.Printf("[CycleRunner] Gate closed (%s %02d:%02d), cycle idle",
			now.Weekday(), now.Hour(), now.Minute())
		stats.Gated = true
		return stats, nil
	}

	leads, err := r.store.Load()
	if err != nil {
		return stats, fmt.Errorf("loading leads: %w", err)
	}

	candidates := Eligible(leads, now, r.policy)
	stats.Candidates = len(candidates)

	if len(candidates) == 0 {
		// Discovery and delivery never share a cycle: new leads are
		// appended now and contacted on a later invocation.
		discovered, err := r.discover(ctx, leads)
		if err != nil {
			return stats, err
		}
		stats.Discovered = discovered
		return stats, nil
	}

	r.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if r.policy.MaxPerCycle > 0 && len(candidates) > r.policy.MaxPerCycle {
		candidates = candidates[:r.policy.MaxPerCycle]
	}

	log.Printf("[CycleRunner] %d candidates ready (quota %d)", stats.Candidates, r.policy.MaxPerCycle)

	for n, c := range candidates {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		l := &leads[c.Index]
		attemptAt := r.clock.Now().In(r.policy.loc())
		stats.Attempted++

		if r.attempt(ctx, l, c.Step, attemptAt) {
			stats.Succeeded++
			log.Printf("[CycleRunner] Step %d delivered to %q", c.Step, l.Name)
		} else {
			stats.Failed++
			log.Printf("[CycleRunner] Step %d failed for %q", c.Step, l.Name)
		}

		// Persist after every attempt so a crash loses at most the
		// in-flight record. A failed write aborts: re-running against
		// stale state would double-send.
		if err := r.store.Save(leads); err != nil {
			return stats, fmt.Errorf("persisting leads after attempt: %w", err)
		}

		if n < len(candidates)-1 {
			r.sleep(ctx, r.jitter())
		}
	}

	return stats, nil
}

// attempt composes and delivers one step, then reconciles the record.
// Returns true on success. All failure modes mark the lead Error with the
// attempt timestamp so the same-day guard blocks hot retries.
func (r *Runner) attempt(ctx context.Context, l *lead.Lead, step int, now time.Time) bool {
	dest, err := r.phoneRule.Normalize(l.Phone)
	if err != nil {
		log.Printf("[CycleRunner] Undialable phone for %q: %v", l.Name, err)
		l.MarkFailed(now)
		return false
	}

	body, err := r.composer.Compose(l.Name, l.Location, step)
	if err != nil {
		log.Printf("[CycleRunner] Compose step %d for %q: %v", step, l.Name, err)
		l.MarkFailed(now)
		return false
	}

	if err := r.gateway.SendText(ctx, dest, body); err != nil {
		log.Printf("[CycleRunner] SendText to %s: %v", dest, err)
		l.MarkFailed(now)
		return false
	}

	// The intro document rides along with step 1 only. Its failure does
	// not fail the attempt: the text already landed.
	if step == 1 && r.attachment != nil {
		r.sleep(ctx, r.jitter()/10)
		if err := r.gateway.SendDocument(ctx, dest, r.attachment.Data, r.attachment.Filename, r.attachment.Caption); err != nil {
			log.Printf("[CycleRunner] SendDocument to %s: %v", dest, err)
		}
	}

	l.MarkContacted(step, r.policy.MaxStep, now)
	return true
}

// discover asks the supplier for fresh prospects and appends the ones not
// already known by id or phone suffix.
func (r *Runner) discover(ctx context.Context, leads []lead.Lead) (int, error) {
	if r.supplier == nil {
		return 0, nil
	}

	log.Printf("[CycleRunner] No pending follow-ups, discovering %q in %q", r.category, r.region)

	found, err := r.supplier.FindNew(ctx, r.category, r.region)
	if err != nil {
		log.Printf("[CycleRunner] Discovery failed: %v", err)
		return 0, nil
	}

	knownIDs := make(map[string]bool, len(leads))
	knownPhones := make(map[string]bool, len(leads))
	for _, l := range leads {
		knownIDs[l.ID] = true
		if key := r.phoneRule.DedupeKey(l.Phone); key != "" {
			knownPhones[key] = true
		}
	}

	added := 0
	for _, f := range found {
		key := r.phoneRule.DedupeKey(f.Phone)
		if f.ID == "" || knownIDs[f.ID] || key == "" || knownPhones[key] {
			continue
		}
		f.Status = lead.StatusNew
		f.SequenceStep = 0
		f.LastContactAt = ""
		leads = append(leads, f)
		knownIDs[f.ID] = true
		knownPhones[key] = true
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := r.store.Save(leads); err != nil {
		return 0, fmt.Errorf("persisting discovered leads: %w", err)
	}
	log.Printf("[CycleRunner] Appended %d new leads", added)
	return added, nil
}

// jitter picks a random delay inside the policy's range.
func (r *Runner) jitter() time.Duration {
	if r.policy.DelayMax <= r.policy.DelayMin {
		return r.policy.DelayMin
	}
	span := r.policy.DelayMax - r.policy.DelayMin
	return r.policy.DelayMin + time.Duration(r.rnd.Int63n(int64(span)))
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
