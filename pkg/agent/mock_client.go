package agent

import (
	"context"
	"fmt"
	"sync"

	"maestro/pkg/agent/llm"
)

// MockLLMClient provides a controllable implementation of llm.LLMClient for
// testing. Call i returns errors[i] when it is non-nil, otherwise the next
// scripted response. Every request is recorded.
type MockLLMClient struct {
	mu            sync.Mutex
	responses     []llm.CompletionResponse
	responseIndex int
	errors        []error
	calls         int
	requests      []llm.CompletionRequest
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []llm.CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
	}
}

// Complete returns the next predefined response or error.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (m *MockLLMClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	call := m.calls
	m.calls++

	if call < len(m.errors) && m.errors[call] != nil {
		return llm.CompletionResponse{}, m.errors[call]
	}
	if m.responseIndex >= len(m.responses) {
		return llm.CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}
	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockLLMClient) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.requests...)
}
