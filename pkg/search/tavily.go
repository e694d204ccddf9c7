package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"maestro/pkg/agent/middleware/resilience/retry"
	"maestro/pkg/logx"
	"maestro/pkg/utils"
)

const (
	defaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 30 * time.Second
)

// TavilyOptions configures the Tavily client.
type TavilyOptions struct {
	APIKey     string
	BaseURL    string        // "" = https://api.tavily.com
	Depth      string        // "basic" or "advanced" (default)
	MaxRetries int           // attempts on 429 and 5xx, at least 1
	HTTPClient *http.Client  // nil = client with a 30s timeout
	Sleep      utils.Sleeper // nil = context-aware time.Sleep
}

// Tavily calls the Tavily search API in question-answer mode.
type Tavily struct {
	opts   TavilyOptions
	policy *retry.Policy
	logger *logx.Logger
}

// NewTavily constructs a Tavily search provider.
func NewTavily(opts TavilyOptions) *Tavily {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.Depth == "" {
		opts.Depth = "advanced"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	policy := retry.NewPolicy(retry.Config{MaxRetries: opts.MaxRetries, BaseDelay: time.Second}, nil)
	policy.Sleep = opts.Sleep.OrDefault()

	return &Tavily{opts: opts, policy: policy, logger: logx.NewLogger("search")}
}

type tavilyRequest struct {
	Query         string `json:"query"`
	APIKey        string `json:"api_key"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer string `json:"answer"`
	Query  string `json:"query"`
}

// statusError carries a non-200 Tavily status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tavily http %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return false
}

// Answer posts the query with include_answer set and returns Tavily's answer.
// 429 and 5xx responses are retried with exponential backoff.
func (t *Tavily) Answer(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(t.opts.APIKey) == "" {
		return "", errors.New("tavily: API key is missing")
	}
	payload, err := json.Marshal(tavilyRequest{
		Query:         query,
		APIKey:        t.opts.APIKey,
		SearchDepth:   t.opts.Depth,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("tavily: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < t.policy.Config.MaxRetries; attempt++ {
		answer, err := t.post(ctx, payload)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !retryable(err) || attempt == t.policy.Config.MaxRetries-1 {
			break
		}
		delay := t.policy.CalculateDelay(attempt)
		t.logger.Warn("Search failed: %v. Retrying in %s.", err, delay)
		if sleepErr := t.policy.Sleep(ctx, delay); sleepErr != nil {
			return "", fmt.Errorf("tavily: %w", sleepErr)
		}
	}
	return "", lastErr
}

func (t *Tavily) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.opts.APIKey)

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("tavily: decode response: %w", err)
	}
	if strings.TrimSpace(out.Answer) == "" {
		return "", ErrNoAnswer
	}
	return out.Answer, nil
}
