package openai

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/types"
)

// ImageProvider generates images through the OpenAI images endpoint
type ImageProvider struct {
	name   string
	client *openai.Client
	logger *logrus.Logger
}

// NewImageProvider creates an image provider registered under name
func NewImageProvider(name string, config *Config, logger *logrus.Logger) *ImageProvider {
	return &ImageProvider{
		name:   name,
		client: newClient(config),
		logger: logger,
	}
}

// Name returns the provider hint this client serves
func (p *ImageProvider) Name() string {
	return p.name
}

// GenerateImage requests a single image and returns its URL as content
func (p *ImageProvider) GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.ProviderResponse, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		// The images API has no negative prompt field
		prompt += "\n\nAvoid: " + req.NegativePrompt
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          req.Model,
		N:              1,
		Size:           nearestSize(req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, classify(p.name, req.Model, err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, providers.StatusError(p.name, req.Model, 0, "response contained no image url", providers.ErrEmptyResponse)
	}

	return &types.ProviderResponse{
		Model:    req.Model,
		Provider: p.name,
		Content:  resp.Data[0].URL,
		Data:     map[string]interface{}{"url": resp.Data[0].URL, "revisedPrompt": resp.Data[0].RevisedPrompt},
		Raw:      resp,
	}, nil
}

// nearestSize maps arbitrary dimensions onto the fixed sizes the API accepts
func nearestSize(width, height int) string {
	switch {
	case width > height:
		return openai.CreateImageSize1792x1024
	case height > width:
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}

var _ providers.ImageProvider = (*ImageProvider)(nil)
