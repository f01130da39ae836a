package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/rs/zerolog/log"
)

// CopilotArgs configures the Copilot backend, which uses the logged-in
// user's credentials rather than an API key.
type CopilotArgs struct {
	Model string `mapstructure:"model"`
}

// CopilotClient scores prompts through a short-lived Copilot session
// per call. Each call is independent; no conversation state is kept.
type CopilotClient struct {
	args CopilotArgs
}

// NewCopilotClient validates args and builds the client.
func NewCopilotClient(args CopilotArgs) (*CopilotClient, error) {
	if strings.TrimSpace(args.Model) == "" {
		return nil, errors.New("copilot backend: model is required")
	}
	return &CopilotClient{args: args}, nil
}

// Evaluate implements [Client].
func (c *CopilotClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	client := copilot.NewClient(&copilot.ClientOptions{
		AutoStart:       ptr(true),
		AutoRestart:     ptr(true),
		UseLoggedInUser: ptr(true),
		LogLevel:        "error",
	})

	defer func() {
		if err := client.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping copilot client")
		}
	}()

	session, err := client.CreateSession(ctx, &copilot.SessionConfig{
		Model: c.args.Model,
	})
	if err != nil {
		return "", &BackendError{Transient: true, Err: fmt.Errorf("failed to start copilot session: %w", err)}
	}

	resp, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: prompt,
		Mode:   "enqueue",
	})
	if err != nil {
		return "", &BackendError{Transient: true, Err: fmt.Errorf("failed to send prompt: %w", err)}
	}

	if resp.Data.Content == nil || strings.TrimSpace(*resp.Data.Content) == "" {
		return "", &BackendError{Err: errors.New("copilot response contained no content")}
	}

	return strings.TrimSpace(*resp.Data.Content), nil
}

func ptr[T any](v T) *T {
	return &v
}
