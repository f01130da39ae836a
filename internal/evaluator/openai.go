package evaluator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const defaultAPIKeyEnv = "OPENAI_API_KEY"

// OpenAIArgs configures the OpenAI backend. The API key is resolved
// from the environment variable named by APIKeyEnv; it is never stored
// in config files.
type OpenAIArgs struct {
	Model        string `mapstructure:"model"`
	APIKeyEnv    string `mapstructure:"api_key_env"`
	BaseURL      string `mapstructure:"base_url"`
	Instructions string `mapstructure:"instructions"`
}

// OpenAIClient scores prompts with a single Responses API call each.
type OpenAIClient struct {
	args   OpenAIArgs
	client openai.Client
}

// NewOpenAIClient validates args and builds the client.
func NewOpenAIClient(args OpenAIArgs) (*OpenAIClient, error) {
	if strings.TrimSpace(args.Model) == "" {
		return nil, errors.New("openai backend: model is required")
	}

	envKey := strings.TrimSpace(args.APIKeyEnv)
	if envKey == "" {
		envKey = defaultAPIKeyEnv
	}
	apiKey := strings.TrimSpace(os.Getenv(envKey))
	if apiKey == "" {
		return nil, fmt.Errorf("openai backend: api key environment variable %s is not set", envKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(args.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		args:   args,
		client: openai.NewClient(opts...),
	}, nil
}

// Evaluate implements [Client].
func (c *OpenAIClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model: c.args.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if c.args.Instructions != "" {
		params.Instructions = openai.String(c.args.Instructions)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if msg := strings.TrimSpace(resp.Error.Message); msg != "" {
		return "", &BackendError{Err: fmt.Errorf("openai response failed: %s", msg)}
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", &BackendError{Err: errors.New("openai response contained no output text")}
	}

	return output, nil
}

// classifyOpenAIError decides whether a Responses API failure is worth
// retrying. Rate limits, request timeouts, and server errors are;
// auth and validation failures are not.
func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		transient := apierr.StatusCode == 408 ||
			apierr.StatusCode == 429 ||
			apierr.StatusCode >= 500
		return &BackendError{Transient: transient, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Transient: true, Err: err}
	}

	return &BackendError{Err: err}
}
