package ratelimit

import (
	"sort"
	"sync"
	"time"

	"maestro/pkg/agent/llm"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Limits are the published per-model limits (0 = unlimited).
type Limits struct {
	TokensPerMinute int
	RequestsPerDay  int
}

// Profile holds a model's limits and usage counters.
type Profile struct {
	MinuteStart     time.Time `json:"minute_start"`
	DayStart        time.Time `json:"day_start"`
	Model           string    `json:"model"`
	TokensPerMinute int       `json:"tokens_per_minute"`
	RequestsPerDay  int       `json:"requests_per_day"`
	MinuteTokens    int       `json:"minute_tokens"`
	DayRequests     int       `json:"day_requests"`
	TotalTokens     int       `json:"total_tokens"`
	TotalRequests   int       `json:"total_requests"`
}

// Tracker owns the model profiles of one client. All methods are safe for
// concurrent use; readers receive copies.
//
//nolint:govet // fieldalignment: grouped for readability
type Tracker struct {
	mu        sync.Mutex
	profiles  map[string]*Profile
	last      Snapshot
	lastModel string
	now       func() time.Time
}

// NewTracker creates a tracker pre-registered with the given model limits.
func NewTracker(limits map[string]Limits) *Tracker {
	t := &Tracker{
		profiles: make(map[string]*Profile, len(limits)),
		now:      time.Now,
	}
	for model, l := range limits {
		t.profiles[model] = &Profile{Model: model, TokensPerMinute: l.TokensPerMinute, RequestsPerDay: l.RequestsPerDay}
	}
	return t
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Tracker) profileLocked(model string) *Profile {
	p, ok := t.profiles[model]
	if !ok {
		p = &Profile{Model: model}
		t.profiles[model] = p
	}
	return p
}

func (p *Profile) rollLocked(now time.Time) {
	if p.MinuteStart.IsZero() || now.Sub(p.MinuteStart) >= minuteWindow {
		p.MinuteStart = now
		p.MinuteTokens = 0
	}
	if p.DayStart.IsZero() || now.Sub(p.DayStart) >= dayWindow {
		p.DayStart = now
		p.DayRequests = 0
	}
}

// Record applies one successful call to the model's counters and stores snap
// as the latest snapshot.
func (t *Tracker) Record(model string, usage llm.Usage, snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.profileLocked(model)
	p.rollLocked(t.now())

	tokens := usage.Total()
	p.MinuteTokens += tokens
	p.DayRequests++
	p.TotalTokens += tokens
	p.TotalRequests++

	t.last = snap
	t.lastModel = model
}

// Last returns the snapshot of the latest successful call and its model.
func (t *Tracker) Last() (Snapshot, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.lastModel
}

// Profile returns a copy of one model's profile.
func (t *Tracker) Profile(model string) (Profile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[model]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// Snapshot returns copies of all profiles sorted by model.
func (t *Tracker) Snapshot() []Profile {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Profile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// MinuteBudget reports the tokens left in the model's local minute window and
// how long until that window rolls over. limited is false for models without
// a tokens-per-minute limit.
func (t *Tracker) MinuteBudget(model string) (remaining int, resetIn time.Duration, limited bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.profiles[model]
	if !ok || p.TokensPerMinute <= 0 {
		return 0, 0, false
	}
	now := t.now()
	if p.MinuteStart.IsZero() || now.Sub(p.MinuteStart) >= minuteWindow {
		return p.TokensPerMinute, 0, true
	}
	return p.TokensPerMinute - p.MinuteTokens, minuteWindow - now.Sub(p.MinuteStart), true
}
