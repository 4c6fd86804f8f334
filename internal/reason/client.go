package reason

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/planweave/planweave/internal/registry"
)

// Client is the Anthropic-backed reasoning engine.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	tracker   *TokenTracker
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the model to use; empty picks a default.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// MaxTokens caps the response size per call (0 picks a default).
	MaxTokens int64
	// UseAWSBedrock routes calls through AWS Bedrock instead of the direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewClient creates a new Anthropic reasoning client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

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
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &Client{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		tracker:   NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard model names to Bedrock
// cross-region inference profile format.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Open begins a fresh exchange with the given system prompt and tools.
func (c *Client) Open(system string, tools []registry.Capability) Exchange {
	return &exchange{
		client: c,
		system: system,
		tools:  registry.ToolParams(tools),
	}
}

// exchange holds the message history for one conversation.
type exchange struct {
	client   *Client
	system   string
	tools    []anthropic.ToolUnionParam
	messages []anthropic.MessageParam
	// pending are the assistant blocks from the last outcome, appended to
	// history together with their tool results on Submit.
	pending []anthropic.ContentBlockParamUnion
}

// Prompt starts or continues the exchange with user text.
func (e *exchange) Prompt(ctx context.Context, text string) (*Outcome, error) {
	e.flushPending(nil)
	e.messages = append(e.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
	return e.step(ctx)
}

// Submit returns tool results for the previous outcome's invocations.
func (e *exchange) Submit(ctx context.Context, results []ToolResult) (*Outcome, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(r.ID, r.Content, r.IsError))
	}
	e.flushPending(blocks)
	return e.step(ctx)
}

// flushPending appends buffered assistant blocks and any tool result
// blocks to the message history.
func (e *exchange) flushPending(results []anthropic.ContentBlockParamUnion) {
	if len(e.pending) > 0 {
		e.messages = append(e.messages, anthropic.NewAssistantMessage(e.pending...))
		e.pending = nil
	}
	if len(results) > 0 {
		e.messages = append(e.messages, anthropic.NewUserMessage(results...))
	}
}

// step makes one API call and translates the response into an Outcome.
func (e *exchange) step(ctx context.Context) (*Outcome, error) {
	resp, err := e.client.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.client.model,
		MaxTokens: e.client.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: e.system},
		},
		Messages: e.messages,
		Tools:    e.tools,
	})
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	e.client.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	out := &Outcome{
		TokensIn:  resp.Usage.InputTokens,
		TokensOut: resp.Usage.OutputTokens,
	}

	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
			e.pending = append(e.pending, anthropic.NewTextBlock(variant.Text))

		case anthropic.ToolUseBlock:
			out.Invocations = append(out.Invocations, ToolInvocation{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			})
			e.pending = append(e.pending,
				anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
		}
	}

	out.Done = resp.StopReason == anthropic.StopReasonEndTurn
	return out, nil
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
