// Package ratelimit tracks provider token windows and throttles completion
// calls when a model's budget runs low.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"maestro/pkg/agent/llm"
)

// Snapshot is the provider-reported token window after the latest successful call.
type Snapshot = llm.RateLimit

// OpenAI-compatible (Groq, OpenAI) rate limit headers.
const (
	HeaderLimitTokens     = "x-ratelimit-limit-tokens"
	HeaderRemainingTokens = "x-ratelimit-remaining-tokens"
	HeaderResetTokens     = "x-ratelimit-reset-tokens"
)

// Anthropic rate limit headers; the reset value is an RFC 3339 timestamp.
const (
	HeaderAnthropicLimit     = "anthropic-ratelimit-tokens-limit"
	HeaderAnthropicRemaining = "anthropic-ratelimit-tokens-remaining"
	HeaderAnthropicReset     = "anthropic-ratelimit-tokens-reset"
)

// ParseHeaders extracts a Snapshot from response headers.
func ParseHeaders(h http.Header) Snapshot {
	return ParseHeadersAt(h, time.Now())
}

// ParseHeadersAt is ParseHeaders with an explicit clock for timestamp resets.
// Missing or malformed values parse as zero; Present reports whether any of
// the token headers was sent.
func ParseHeadersAt(h http.Header, now time.Time) Snapshot {
	var snap Snapshot
	if h == nil {
		return snap
	}

	if v := h.Get(HeaderRemainingTokens); v != "" || h.Get(HeaderLimitTokens) != "" {
		snap.Present = true
		snap.Limit = parseInt(h.Get(HeaderLimitTokens))
		snap.Remaining = parseInt(v)
		snap.Reset, _ = ParseReset(h.Get(HeaderResetTokens))
		return snap
	}

	if v := h.Get(HeaderAnthropicRemaining); v != "" || h.Get(HeaderAnthropicLimit) != "" {
		snap.Present = true
		snap.Limit = parseInt(h.Get(HeaderAnthropicLimit))
		snap.Remaining = parseInt(v)
		if at, err := time.Parse(time.RFC3339, strings.TrimSpace(h.Get(HeaderAnthropicReset))); err == nil && at.After(now) {
			snap.Reset = at.Sub(now)
		}
	}
	return snap
}

// ParseReset parses a reset window such as "7.66s", "2m59.56s", "120ms" or a
// bare number of seconds. Unknown trailing unit suffixes are stripped.
func ParseReset(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return 0, false
		}
		return d, true
	}

	numeric := strings.TrimRightFunc(value, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	secs, err := strconv.ParseFloat(numeric, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func parseInt(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return 0
}
