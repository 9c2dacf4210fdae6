package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/types"
)

// defaultMaxTokens is used when a tier does not set max tokens; the Messages API requires it
const defaultMaxTokens = 1024

const jsonInstruction = "Respond with a single valid JSON object and nothing else."

// Provider implements text generation against Anthropic Claude
type Provider struct {
	client *anthropic.Client
	config *Config
	logger *logrus.Logger
}

// Config holds Anthropic-specific configuration
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	ProbeModel string        `yaml:"probe_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(config *Config, logger *logrus.Logger) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// One attempt per tier; escalation handles retries
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client: &client,
		config: config,
		logger: logger,
	}
}

// Name returns the provider hint this client serves
func (p *Provider) Name() string {
	return "anthropic"
}

// Complete sends a Messages API request
func (p *Provider) Complete(ctx context.Context, req *types.TextRequest) (*types.ProviderResponse, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		p.logger.WithError(err).WithField("model", req.Model).Debug("Anthropic message failed")
		return nil, classify(req.Model, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, providers.StatusError("anthropic", req.Model, 0, "message contained no text blocks", providers.ErrEmptyResponse)
	}

	return &types.ProviderResponse{
		Model:    string(msg.Model),
		Provider: "anthropic",
		Content:  text.String(),
		Raw:      msg,
		Usage: &types.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// Probe sends a 1-token message using the cheapest model
func (p *Provider) Probe(ctx context.Context) error {
	model := p.config.ProbeModel
	if model == "" {
		model = "claude-3-haiku-20240307"
	}

	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
		MaxTokens: 1,
	})
	if err != nil {
		return classify(model, err)
	}
	return nil
}

func (p *Provider) buildParams(req *types.TextRequest) anthropic.MessageNewParams {
	var system []string
	var messages []anthropic.MessageParam

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			// Claude takes system prompts out of band
			system = append(system, msg.Content)
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if req.JSONMode {
		system = append(system, jsonInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(system, "\n\n"), Type: "text"},
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Temperature))
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(float64(*req.TopP))
	}

	return params
}

func classify(model string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return providers.StatusError("anthropic", model, apiErr.StatusCode, "", err)
	}
	return providers.Classify("anthropic", model, err)
}

var _ providers.TextProvider = (*Provider)(nil)
var _ providers.Prober = (*Provider)(nil)
