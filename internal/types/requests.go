package types

// InvocationOptions controls escalation for a single call chain
type InvocationOptions struct {
	DisableFallback  bool   `json:"disable_fallback,omitempty"`
	DisableEmergency bool   `json:"disable_emergency,omitempty"`
	Priority         string `json:"priority,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// Allows reports whether the options permit attempting the given tier
func (o InvocationOptions) Allows(tier Tier) bool {
	switch tier {
	case TierFallback:
		return !o.DisableFallback
	case TierEmergency:
		return !o.DisableEmergency
	default:
		return true
	}
}

// TextParams is the inbound call surface for text generation
type TextParams struct {
	SystemPrompt string   `json:"systemPrompt"`
	UserPrompt   string   `json:"userPrompt"`
	Temperature  *float32 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
	TopP         *float32 `json:"topP,omitempty"`

	// JSON requests structured output; Fallback is returned as Data when the
	// content cannot be parsed.
	JSON     bool        `json:"json,omitempty"`
	Fallback interface{} `json:"fallback,omitempty"`

	// Schema, when set, is a Go value whose JSON schema is sent to providers
	// that support strict structured output.
	Schema     interface{} `json:"-"`
	SchemaName string      `json:"schemaName,omitempty"`

	Context map[string]interface{} `json:"context,omitempty"`
	Options InvocationOptions      `json:"options,omitempty"`
}

// ImageParams is the inbound call surface for image generation
type ImageParams struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	Width          *int   `json:"width,omitempty"`
	Height         *int   `json:"height,omitempty"`
	Steps          *int   `json:"steps,omitempty"`

	Context map[string]interface{} `json:"context,omitempty"`
	Options InvocationOptions      `json:"options,omitempty"`
}

// Message is one chat message sent to a text provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextRequest is the provider-facing text generation request
type TextRequest struct {
	Model       string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
	TopP        *float32

	// JSONMode asks for a JSON object response
	JSONMode   bool
	Schema     []byte
	SchemaName string
}

// ImageRequest is the provider-facing image generation request
type ImageRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Seed           int64   `json:"seed"`
	Steps          int     `json:"num_inference_steps"`
	GuidanceScale  float64 `json:"guidance_scale,omitempty"`
	Scheduler      string  `json:"scheduler,omitempty"`
}
