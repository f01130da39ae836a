// Package evaluator provides the backend clients that score a single
// prompt. A client is stateless and safe for concurrent use; the
// orchestrator owns retries, timeouts, and parallelism.
package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Client evaluates one prompt and returns the backend's raw text
// output. Implementations must be safe for concurrent use.
type Client interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// BackendError wraps a failure from an evaluation backend. Transient
// failures (timeouts, rate limits, 5xx) are retried by the
// orchestrator; permanent ones (auth, bad request) are not.
type BackendError struct {
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	if e.Transient {
		return fmt.Sprintf("backend error (transient): %v", e.Err)
	}
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a BackendError marked transient.
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}

// New builds a backend client by kind. Params are decoded into the
// backend's own argument struct, so each backend documents its options
// through mapstructure tags.
func New(kind string, params map[string]any) (Client, error) {
	switch kind {
	case "openai":
		var args OpenAIArgs
		if err := mapstructure.Decode(params, &args); err != nil {
			return nil, fmt.Errorf("invalid openai backend params: %w", err)
		}
		return NewOpenAIClient(args)
	case "copilot":
		var args CopilotArgs
		if err := mapstructure.Decode(params, &args); err != nil {
			return nil, fmt.Errorf("invalid copilot backend params: %w", err)
		}
		return NewCopilotClient(args)
	case "mock":
		var args MockArgs
		if err := mapstructure.Decode(params, &args); err != nil {
			return nil, fmt.Errorf("invalid mock backend params: %w", err)
		}
		return NewMockClient(args), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}
