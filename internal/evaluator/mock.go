package evaluator

import (
	"context"
	"sync"
	"time"
)

// MockArgs configures the mock backend for dry runs.
type MockArgs struct {
	Response string        `mapstructure:"response"`
	Delay    time.Duration `mapstructure:"delay"`
}

// MockClient is a scripted in-process backend for tests and dry runs.
// Script, when set, decides the response per prompt; otherwise every
// call returns the fixed Response. Calls are counted.
type MockClient struct {
	Script   func(prompt string) (string, error)
	Response string
	Delay    time.Duration

	mu      sync.Mutex
	calls   int
	prompts []string
}

// NewMockClient builds a mock backend from decoded params.
func NewMockClient(args MockArgs) *MockClient {
	response := args.Response
	if response == "" {
		response = "5"
	}
	return &MockClient{
		Response: response,
		Delay:    args.Delay,
	}
}

// Evaluate implements [Client].
func (m *MockClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", &BackendError{Transient: true, Err: ctx.Err()}
		}
	}

	if err := ctx.Err(); err != nil {
		return "", &BackendError{Transient: true, Err: err}
	}

	if m.Script != nil {
		return m.Script(prompt)
	}
	return m.Response, nil
}

// Calls reports how many times Evaluate has been invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt seen so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
