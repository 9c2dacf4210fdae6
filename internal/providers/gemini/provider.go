package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/types"
)

// Provider implements text generation against the Gemini API
type Provider struct {
	client *genai.Client
	config *Config
	logger *logrus.Logger
}

// Config holds Gemini-specific configuration
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	ProbeModel string        `yaml:"probe_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewProvider creates a Gemini client. No request is issued.
func NewProvider(ctx context.Context, config *Config, logger *logrus.Logger) (*Provider, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		timeout := config.Timeout
		clientConfig.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Name returns the provider hint this client serves
func (p *Provider) Name() string {
	return "gemini"
}

// Complete sends a generateContent request
func (p *Provider) Complete(ctx context.Context, req *types.TextRequest) (*types.ProviderResponse, error) {
	var system []string
	var contents []*genai.Content

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		p.logger.WithError(err).WithField("model", req.Model).Debug("Gemini request failed")
		return nil, classify(req.Model, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, providers.StatusError("gemini", req.Model, 0, "response contained no text", providers.ErrEmptyResponse)
	}

	result := &types.ProviderResponse{
		Model:    firstNonEmpty(resp.ModelVersion, req.Model),
		Provider: "gemini",
		Content:  text,
		Raw:      resp,
	}
	if resp.UsageMetadata != nil {
		result.Usage = &types.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// Probe sends a 1-token request
func (p *Provider) Probe(ctx context.Context) error {
	model := p.config.ProbeModel
	if model == "" {
		model = "gemini-2.0-flash"
	}

	_, err := p.client.Models.GenerateContent(ctx, model, genai.Text("ping"), &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	if err != nil {
		return classify(model, err)
	}
	return nil
}

func classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.StatusError("gemini", model, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return providers.StatusError("gemini", model, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return providers.Classify("gemini", model, err)
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
var _ providers.Prober = (*Provider)(nil)
