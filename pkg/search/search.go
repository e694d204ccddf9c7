// Package search answers sub-task search queries for the sub-agent stage.
package search

import (
	"context"
	"errors"
)

// ErrNoAnswer is returned when the provider responded without an answer.
var ErrNoAnswer = errors.New("search returned no answer")

// Provider answers a natural language query with a short text answer.
type Provider interface {
	Answer(ctx context.Context, query string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, query string) (string, error)

// Answer implements Provider.
func (f ProviderFunc) Answer(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
