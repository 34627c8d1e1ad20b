// Package llm provides the Anthropic backend used by remote worker calls,
// either directly or through AWS Bedrock.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/switchboard/internal/agent"
)

// DefaultMaxTokens bounds each completion when none is configured.
const DefaultMaxTokens = 4096

// ErrNoCredentials is returned when neither an API key nor Bedrock is configured.
var ErrNoCredentials = errors.New("no Anthropic API key configured (set ANTHROPIC_API_KEY or enable bedrock)")

// ErrOffline is returned by the Offline backend.
var ErrOffline = errors.New("remote backend disabled")

// Completion is the text output of one call plus its metered usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer performs one system+user prompt completion.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (*Completion, error)
}

// Config contains configuration for creating a new Client.
type Config struct {
	// Model is the default model (e.g., claude-sonnet-4-20250514).
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseBedrock selects AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// MaxTokens bounds each completion.
	MaxTokens int64
}

// Client wraps the Anthropic SDK client.
type Client struct {
	inner     anthropic.Client
	model     string
	bedrock   bool
	maxTokens int64
}

// NewClient creates a new Anthropic API client. SDK-level retries are
// disabled; the execution wrapper owns the retry policy.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNoCredentials
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		bedrock:   cfg.UseBedrock,
		maxTokens: maxTokens,
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one message. An empty model selects the client default.
// Errors are tagged with an agent error kind.
func (c *Client) Complete(ctx context.Context, model, system, prompt string) (*Completion, error) {
	if model == "" {
		model = c.model
	}
	wire := anthropic.Model(model)
	if c.bedrock {
		wire = translateModelForBedrock(wire)
	}

	params := anthropic.MessageNewParams{
		Model:     wire,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(fmt.Errorf("API call failed: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &Completion{
		Text:         text.String(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// classify tags an SDK error with the kind that drives retry decisions.
func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return agent.Transient(err)
	}
	return tagStatus(apiErr.StatusCode, err)
}

func tagStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return agent.Unavailable(err)
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return agent.Invalid(err)
	default:
		// 408, 409, 429, 5xx and Anthropic's 529 overloaded.
		return agent.Transient(err)
	}
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Offline is a Completer that never reaches the network. Every call is
// Unavailable, so workers go straight to their fallbacks.
type Offline struct{}

// Complete implements Completer.
func (Offline) Complete(context.Context, string, string, string) (*Completion, error) {
	return nil, agent.Unavailable(ErrOffline)
}
