package llm

import (
	"context"
	"sync"
)

// MockProvider is a test double for Provider.
// GenerateFunc can be overridden with a custom function; if not overridden,
// Generate returns an empty response.
// Thread-safe for use in concurrent tests.
type MockProvider struct {
	GenerateFunc func(ctx context.Context, req Request) (*Response, error)

	mu sync.Mutex

	// Calls tracks all requests for assertions
	Calls []Request
}

// Ensure MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &Response{Model: "mock"}, nil
}

// CallCount returns the number of recorded calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsFor returns the recorded requests with the given purpose.
func (m *MockProvider) CallsFor(purpose string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, c := range m.Calls {
		if c.Purpose == purpose {
			out = append(out, c)
		}
	}
	return out
}
