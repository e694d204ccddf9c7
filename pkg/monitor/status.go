// Package monitor exposes token usage and rate limit state of a running
// pipeline over HTTP and renders it in a terminal dashboard.
package monitor

import (
	"time"

	"maestro/pkg/agent/middleware/resilience/ratelimit"
)

// Source is the read side of the resilient client used by the monitor.
type Source interface {
	Profiles() []ratelimit.Profile
	LastSnapshot() (ratelimit.Snapshot, string)
}

// ModelStatus is one model's usage. Limits of 0 mean unlimited; the matching
// remaining field is then -1.
type ModelStatus struct {
	Model             string `json:"model"`
	TokensPerMinute   int    `json:"tokens_per_minute"`
	RequestsPerDay    int    `json:"requests_per_day"`
	MinuteTokens      int    `json:"minute_tokens"`
	DayRequests       int    `json:"day_requests"`
	TokensRemaining   int    `json:"tokens_remaining"`
	RequestsRemaining int    `json:"requests_remaining"`
	TotalTokens       int    `json:"total_tokens"`
	TotalRequests     int    `json:"total_requests"`
}

// ProviderWindow is the rate limit window reported by the provider on the
// latest response.
type ProviderWindow struct {
	Model        string  `json:"model"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// Status is the /status document.
type Status struct {
	At     time.Time       `json:"at"`
	Models []ModelStatus   `json:"models"`
	Last   *ProviderWindow `json:"last,omitempty"`
}

// BuildStatus reads src at now. Counters of expired local windows read as 0.
func BuildStatus(src Source, now time.Time) Status {
	st := Status{At: now, Models: []ModelStatus{}}
	for _, p := range src.Profiles() {
		ms := ModelStatus{
			Model:           p.Model,
			TokensPerMinute: p.TokensPerMinute,
			RequestsPerDay:  p.RequestsPerDay,
			MinuteTokens:    p.MinuteTokens,
			DayRequests:     p.DayRequests,
			TotalTokens:     p.TotalTokens,
			TotalRequests:   p.TotalRequests,
		}
		if p.MinuteStart.IsZero() || now.Sub(p.MinuteStart) >= time.Minute {
			ms.MinuteTokens = 0
		}
		if p.DayStart.IsZero() || now.Sub(p.DayStart) >= 24*time.Hour {
			ms.DayRequests = 0
		}
		ms.TokensRemaining = remaining(ms.TokensPerMinute, ms.MinuteTokens)
		ms.RequestsRemaining = remaining(ms.RequestsPerDay, ms.DayRequests)
		st.Models = append(st.Models, ms)
	}

	if snap, model := src.LastSnapshot(); snap.Present {
		st.Last = &ProviderWindow{
			Model:        model,
			Limit:        snap.Limit,
			Remaining:    snap.Remaining,
			ResetSeconds: snap.Reset.Seconds(),
		}
	}
	return st
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}
