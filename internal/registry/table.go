package registry

import (
	"time"

	"github.com/architect-ai/model-router/internal/types"
)

// Provider hints used by the default table
const (
	ProviderTogether      = "together"
	ProviderTogetherImage = "together-image"
	ProviderOpenAI        = "openai"
	ProviderOpenAIImage   = "openai-image"
	ProviderAnthropic     = "anthropic"
	ProviderGemini        = "gemini"
)

func temp(v float32) *float32 { return &v }

var (
	qwen72B = types.TierConfig{
		Model:       "Qwen/Qwen2.5-72B-Instruct-Turbo",
		Provider:    ProviderTogether,
		Params:      types.CallParams{Temperature: temp(0.2), MaxTokens: 4000, ResponseFormat: "json_object"},
		CostPerCall: 0.0048,
		AvgLatency:  9 * time.Second,
		Reliability: 0.97,
	}
	llama70B = types.TierConfig{
		Model:       "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		Provider:    ProviderTogether,
		Params:      types.CallParams{Temperature: temp(0.7), MaxTokens: 2000},
		CostPerCall: 0.0018,
		AvgLatency:  6 * time.Second,
		Reliability: 0.96,
	}
	llama8B = types.TierConfig{
		Model:       "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
		Provider:    ProviderTogether,
		Params:      types.CallParams{Temperature: temp(0.1), MaxTokens: 1500, ResponseFormat: "json_object"},
		CostPerCall: 0.0003,
		AvgLatency:  2 * time.Second,
		Reliability: 0.95,
	}
	gpt4o = types.TierConfig{
		Model:       "gpt-4o",
		Provider:    ProviderOpenAI,
		Params:      types.CallParams{Temperature: temp(0.3), MaxTokens: 4000},
		CostPerCall: 0.03,
		AvgLatency:  12 * time.Second,
		Reliability: 0.99,
	}
	gpt4oMini = types.TierConfig{
		Model:       "gpt-4o-mini",
		Provider:    ProviderOpenAI,
		Params:      types.CallParams{Temperature: temp(0.3), MaxTokens: 2000},
		CostPerCall: 0.002,
		AvgLatency:  5 * time.Second,
		Reliability: 0.99,
	}
	claudeSonnet = types.TierConfig{
		Model:       "claude-3-5-sonnet-20241022",
		Provider:    ProviderAnthropic,
		Params:      types.CallParams{Temperature: temp(0.3), MaxTokens: 4000},
		CostPerCall: 0.045,
		AvgLatency:  15 * time.Second,
		Reliability: 0.995,
	}
	geminiFlash = types.TierConfig{
		Model:       "gemini-2.0-flash",
		Provider:    ProviderGemini,
		Params:      types.CallParams{Temperature: temp(0.4), MaxTokens: 3000},
		CostPerCall: 0.001,
		AvgLatency:  4 * time.Second,
		Reliability: 0.97,
	}
	geminiPro = types.TierConfig{
		Model:       "gemini-1.5-pro",
		Provider:    ProviderGemini,
		Params:      types.CallParams{Temperature: temp(0.4), MaxTokens: 3000},
		CostPerCall: 0.012,
		AvgLatency:  10 * time.Second,
		Reliability: 0.98,
	}
	fluxDev = types.TierConfig{
		Model:       "black-forest-labs/FLUX.1-dev",
		Provider:    ProviderTogetherImage,
		Params:      types.CallParams{Width: 1024, Height: 1024, Steps: 40, GuidanceScale: 7.5},
		CostPerCall: 0.025,
		AvgLatency:  20 * time.Second,
		Reliability: 0.95,
	}
	fluxSchnell = types.TierConfig{
		Model:       "black-forest-labs/FLUX.1-schnell",
		Provider:    ProviderTogetherImage,
		Params:      types.CallParams{Width: 1024, Height: 1024, Steps: 4},
		CostPerCall: 0.003,
		AvgLatency:  5 * time.Second,
		Reliability: 0.97,
	}
	dalle3 = types.TierConfig{
		Model:       "dall-e-3",
		Provider:    ProviderOpenAIImage,
		Params:      types.CallParams{Width: 1024, Height: 1024},
		CostPerCall: 0.04,
		AvgLatency:  18 * time.Second,
		Reliability: 0.99,
	}
)

func ptr(c types.TierConfig) *types.TierConfig { return &c }

func withParams(c types.TierConfig, mutate func(*types.CallParams)) types.TierConfig {
	mutate(&c.Params)
	return c
}

// defaultTiers is the built-in tier table
func defaultTiers() map[types.TaskID]TierCandidates {
	return map[types.TaskID]TierCandidates{
		types.TaskDesignSpecification: {
			Primary:   ptr(qwen72B),
			Fallback:  ptr(withParams(gpt4o, func(p *types.CallParams) { p.ResponseFormat = "json_object"; p.Temperature = temp(0.2) })),
			Emergency: ptr(claudeSonnet),
		},
		types.TaskArchitecturalReasoning: {
			Primary:   ptr(llama70B),
			Fallback:  ptr(gpt4o),
			Emergency: ptr(claudeSonnet),
		},
		types.TaskSiteAnalysis: {
			Primary:   ptr(geminiFlash),
			Fallback:  ptr(qwen72B),
			Emergency: ptr(gpt4o),
		},
		types.TaskPortfolioStyleExtraction: {
			Primary:  ptr(gpt4o),
			Fallback: ptr(geminiPro),
		},
		types.TaskBlendedStyle: {
			Primary:  ptr(qwen72B),
			Fallback: ptr(gpt4oMini),
		},
		types.TaskModificationReasoning: {
			Primary:   ptr(qwen72B),
			Fallback:  ptr(gpt4o),
			Emergency: ptr(claudeSonnet),
		},
		types.TaskConsistencyValidation: {
			Primary:  ptr(llama8B),
			Fallback: ptr(gpt4oMini),
		},
		types.TaskTechnicalDrawing: {
			Primary:   ptr(fluxDev),
			Fallback:  ptr(fluxSchnell),
			Emergency: ptr(dalle3),
		},
		types.TaskPhotorealisticRender: {
			Primary:   ptr(withParams(fluxDev, func(p *types.CallParams) { p.Width = 1536; p.Height = 1024 })),
			Fallback:  ptr(withParams(fluxSchnell, func(p *types.CallParams) { p.Width = 1536; p.Height = 1024 })),
			Emergency: ptr(withParams(dalle3, func(p *types.CallParams) { p.Width = 1792; p.Height = 1024 })),
		},
	}
}

// defaultAliases maps alternate task names onto canonical tasks. Targets are
// always canonical; aliases never point at other aliases.
func defaultAliases() map[types.TaskID]types.TaskID {
	return map[types.TaskID]types.TaskID{
		"GENERATE_DESIGN_SPECIFICATION": types.TaskDesignSpecification,
		"DNA_GENERATION":                types.TaskDesignSpecification,
		"DESIGN_DNA":                    types.TaskDesignSpecification,
		"MASTER_DNA":                    types.TaskDesignSpecification,
		"DESIGN_REASONING":              types.TaskArchitecturalReasoning,
		"ARCHITECTURAL_ANALYSIS":        types.TaskArchitecturalReasoning,
		"LOCATION_ANALYSIS":             types.TaskSiteAnalysis,
		"CLIMATE_ANALYSIS":              types.TaskSiteAnalysis,
		"PORTFOLIO_ANALYSIS":            types.TaskPortfolioStyleExtraction,
		"STYLE_EXTRACTION":              types.TaskPortfolioStyleExtraction,
		"STYLE_BLENDING":                types.TaskBlendedStyle,
		"DESIGN_MODIFICATION":           types.TaskModificationReasoning,
		"AI_MODIFY":                     types.TaskModificationReasoning,
		"CONSISTENCY_CHECK":             types.TaskConsistencyValidation,
		"RENDER_TECHNICAL_DRAWING":      types.TaskTechnicalDrawing,
		"FLOOR_PLAN":                    types.TaskTechnicalDrawing,
		"FLOOR_PLAN_2D":                 types.TaskTechnicalDrawing,
		"ELEVATION":                     types.TaskTechnicalDrawing,
		"SECTION":                       types.TaskTechnicalDrawing,
		"RENDER_3D":                     types.TaskPhotorealisticRender,
		"PHOTOREALISTIC_3D":             types.TaskPhotorealisticRender,
		"EXTERIOR_RENDER":               types.TaskPhotorealisticRender,
		"INTERIOR_RENDER":               types.TaskPhotorealisticRender,
	}
}

// defaultRateLimits holds minimum inter-call spacing per provider. Providers
// not listed are not paced.
func defaultRateLimits() map[string]time.Duration {
	return map[string]time.Duration{
		ProviderTogether:      500 * time.Millisecond,
		ProviderTogetherImage: 6 * time.Second,
		ProviderGemini:        250 * time.Millisecond,
	}
}
