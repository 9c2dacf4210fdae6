package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/types"
)

// Provider talks to OpenAI or any OpenAI-compatible chat API (Together AI)
type Provider struct {
	name   string
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// Config holds connection settings for an OpenAI-compatible endpoint
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	OrgID      string        `yaml:"org_id"`
	ProbeModel string        `yaml:"probe_model"`
	JSONSchema bool          `yaml:"json_schema"` // endpoint accepts response_format=json_schema
	Timeout    time.Duration `yaml:"timeout"`
}

// NewProvider creates a provider registered under name
func NewProvider(name string, config *Config, logger *logrus.Logger) *Provider {
	return &Provider{
		name:   name,
		client: newClient(config),
		config: config,
		logger: logger,
	}
}

func newClient(config *Config) *openai.Client {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return openai.NewClientWithConfig(clientConfig)
}

// Name returns the provider hint this client serves
func (p *Provider) Name() string {
	return p.name
}

// SupportsJSONSchema reports whether strict json_schema output can be requested
func (p *Provider) SupportsJSONSchema() bool {
	return p.config.JSONSchema
}

// Complete performs a chat completion request
func (p *Provider) Complete(ctx context.Context, req *types.TextRequest) (*types.ProviderResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"provider": p.name,
			"model":    req.Model,
		}).Debug("Chat completion failed")
		return nil, p.classify(req.Model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, providers.StatusError(p.name, req.Model, 0, "response contained no choices", providers.ErrEmptyResponse)
	}

	return &types.ProviderResponse{
		Model:    firstNonEmpty(resp.Model, req.Model),
		Provider: p.name,
		Content:  resp.Choices[0].Message.Content,
		Raw:      resp,
		Usage: &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Probe sends a 1-token completion
func (p *Provider) Probe(ctx context.Context) error {
	model := p.config.ProbeModel
	if model == "" {
		model = openai.GPT4oMini
	}

	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return p.classify(model, err)
	}
	return nil
}

func (p *Provider) buildRequest(req *types.TextRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		chatReq.TopP = *req.TopP
	}

	switch {
	case len(req.Schema) > 0 && p.config.JSONSchema:
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   firstNonEmpty(req.SchemaName, "response"),
				Schema: json.RawMessage(req.Schema),
				Strict: true,
			},
		}
	case req.JSONMode:
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return chatReq
}

// classify maps go-openai errors onto the router's error taxonomy
func (p *Provider) classify(model string, err error) error {
	return classify(p.name, model, err)
}

func classify(provider, model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return providers.StatusError(provider, model, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return providers.StatusError(provider, model, reqErr.HTTPStatusCode, strings.TrimSpace(reqErr.HTTPStatus), err)
	}
	return providers.Classify(provider, model, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ providers.TextProvider = (*Provider)(nil)
var _ providers.SchemaProvider = (*Provider)(nil)
var _ providers.Prober = (*Provider)(nil)
