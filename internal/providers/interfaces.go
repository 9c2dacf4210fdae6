package providers

import (
	"context"

	"github.com/architect-ai/model-router/internal/types"
)

// TextProvider executes chat-style text generation
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, req *types.TextRequest) (*types.ProviderResponse, error)
}

// ImageProvider executes image generation
type ImageProvider interface {
	Name() string
	GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.ProviderResponse, error)
}

// Prober issues a minimal request used to judge provider availability.
// Implementations return a *types.ProviderError carrying the HTTP status
// when the provider answered with a non-success status.
type Prober interface {
	Name() string
	Probe(ctx context.Context) error
}

// SchemaProvider is implemented by text providers that accept a strict JSON schema
type SchemaProvider interface {
	TextProvider
	SupportsJSONSchema() bool
}
