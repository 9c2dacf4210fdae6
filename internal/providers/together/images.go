package together

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/types"
)

// DefaultBaseURL is the Together AI API root
const DefaultBaseURL = "https://api.together.xyz/v1"

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 4 << 10

// ImageProvider generates images with FLUX models hosted on Together AI
type ImageProvider struct {
	name       string
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// Config holds Together AI image settings
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type imageBody struct {
	types.ImageRequest
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

// NewImageProvider creates an image provider registered under name
func NewImageProvider(name string, config *Config, logger *logrus.Logger) *ImageProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ImageProvider{
		name:       name,
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name returns the provider hint this client serves
func (p *ImageProvider) Name() string {
	return p.name
}

// GenerateImage posts a generation request and returns the image URL as content
func (p *ImageProvider) GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.ProviderResponse, error) {
	payload, err := json.Marshal(imageBody{ImageRequest: *req, N: 1, ResponseFormat: "url"})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.Classify(p.name, req.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		p.logger.WithFields(logrus.Fields{
			"provider": p.name,
			"model":    req.Model,
			"status":   resp.StatusCode,
		}).Debug("Image generation rejected")
		return nil, providers.StatusError(p.name, req.Model, resp.StatusCode, errorMessage(body), nil)
	}

	var raw interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, providers.StatusError(p.name, req.Model, resp.StatusCode, "undecodable response body", err)
	}

	url, ok := providers.ExtractContent(raw)
	if !ok {
		return nil, providers.StatusError(p.name, req.Model, resp.StatusCode, "response contained no image url", providers.ErrEmptyResponse)
	}

	return &types.ProviderResponse{
		Model:    req.Model,
		Provider: p.name,
		Content:  url,
		Data:     map[string]interface{}{"url": url, "seed": req.Seed, "width": req.Width, "height": req.Height},
		Raw:      raw,
	}, nil
}

func (p *ImageProvider) endpoint() string {
	base := p.config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/images/generations"
}

// errorMessage pulls error.message out of a JSON error body when present
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}

var _ providers.ImageProvider = (*ImageProvider)(nil)
