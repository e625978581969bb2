// Package testing provides test utilities, mocks, and fixtures for testing q components.
package testing

import (
	"context"
	"fmt"
	"io"

	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/llm"
)

// MockBackend is a mock implementation of llm.Backend for testing
// without making real API calls.
type MockBackend struct {
	// SendQueryFunc is called when SendQuery() is invoked. If nil, returns default response.
	SendQueryFunc func(ctx context.Context, prompt string) (string, error)

	// SendStreamingQueryFunc is called when SendStreamingQuery() is invoked.
	// If nil, streams the default response as a single chunk.
	SendStreamingQueryFunc func(ctx context.Context, prompt string) (llm.ChunkSequence, error)

	// ValidateKeyFunc is called when ValidateKey() is invoked. If nil, returns nil.
	ValidateKeyFunc func(ctx context.Context) error

	// Model is the model name to return from ModelName()
	Model string

	// CallCount tracks how many times SendQuery/SendStreamingQuery was called
	CallCount int

	// LastPrompt stores the last prompt received
	LastPrompt string
}

// ModelName implements llm.Backend.ModelName
func (m *MockBackend) ModelName() string {
	if m.Model == "" {
		return "mock-model-v1"
	}
	return m.Model
}

// SendQuery implements llm.Backend.SendQuery
func (m *MockBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	m.CallCount++
	m.LastPrompt = prompt

	if m.SendQueryFunc != nil {
		return m.SendQueryFunc(ctx, prompt)
	}

	return "Mock response from " + m.ModelName(), nil
}

// SendStreamingQuery implements llm.Backend.SendStreamingQuery
func (m *MockBackend) SendStreamingQuery(ctx context.Context, prompt string) (llm.ChunkSequence, error) {
	m.CallCount++
	m.LastPrompt = prompt

	if m.SendStreamingQueryFunc != nil {
		return m.SendStreamingQueryFunc(ctx, prompt)
	}

	return NewChunkSequence([]string{"Mock response from " + m.ModelName()}, nil), nil
}

// ValidateKey implements llm.Backend.ValidateKey
func (m *MockBackend) ValidateKey(ctx context.Context) error {
	if m.ValidateKeyFunc != nil {
		return m.ValidateKeyFunc(ctx)
	}
	return nil
}

// ChunkSequence replays fixed chunks, then ends with err (or io.EOF when err is nil)
type ChunkSequence struct {
	chunks []string
	err    error
	pos    int

	// Closed reports whether Close was called
	Closed bool
}

// NewChunkSequence creates a sequence yielding chunks in order followed by err
func NewChunkSequence(chunks []string, err error) *ChunkSequence {
	return &ChunkSequence{chunks: chunks, err: err}
}

// Next implements llm.ChunkSequence.Next
func (s *ChunkSequence) Next() (string, error) {
	if s.pos < len(s.chunks) {
		s.pos++
		return s.chunks[s.pos-1], nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// Close implements llm.ChunkSequence.Close
func (s *ChunkSequence) Close() error {
	s.Closed = true
	return nil
}

// ErrorBackend is a mock that always returns errors (for error testing)
type ErrorBackend struct {
	Err error
}

// NewErrorBackend creates an ErrorBackend failing with an Other-kind error
func NewErrorBackend(message string) *ErrorBackend {
	return &ErrorBackend{Err: &llm.Error{Kind: llm.KindOther, Message: message}}
}

// ModelName returns error model name
func (e *ErrorBackend) ModelName() string {
	return "error-model"
}

// SendQuery always returns an error
func (e *ErrorBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	return "", e.Err
}

// SendStreamingQuery always returns an error
func (e *ErrorBackend) SendStreamingQuery(ctx context.Context, prompt string) (llm.ChunkSequence, error) {
	return nil, e.Err
}

// ValidateKey always returns an error
func (e *ErrorBackend) ValidateKey(ctx context.Context) error {
	return fmt.Errorf("validate key: %w", e.Err)
}

// FailingStore is a cache.Store whose every operation fails
type FailingStore struct {
	Err error
}

func (s *FailingStore) Get(key string) (string, bool, error) { return "", false, s.Err }
func (s *FailingStore) Insert(key, value string) error { return s.Err }
func (s *FailingStore) Clear() error { return s.Err }
func (s *FailingStore) ClearExpired() (int64, error) { return 0, s.Err }
func (s *FailingStore) Len() (int, error) { return 0, s.Err }
func (s *FailingStore) IsEmpty() (bool, error) { return false, s.Err }
func (s *FailingStore) Stats() (cache.Stats, error) { return cache.Stats{}, s.Err }
func (s *FailingStore) Close() error { return nil }
