package model

import (
	"context"
	"sync"
)

// Mock is a scripted Client for tests. By default it echoes a shortened
// form of the input; SummarizeFunc overrides the behavior entirely.
type Mock struct {
	mu    sync.Mutex
	calls []Request

	// SummarizeFunc, if set, handles every call.
	SummarizeFunc func(ctx context.Context, req Request) (string, error)

	// Err, if set, is returned by every call (ignored when SummarizeFunc
	// is set).
	Err error
}

func (m *Mock) Summarize(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	// Deterministic placeholder: half the input, so compression tests see
	// a real reduction.
	half := len(req.Input) / 2
	if half == 0 {
		half = len(req.Input)
	}
	return req.Input[:half], nil
}

// Calls returns a copy of all requests seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Summarize calls seen so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
