package types

import (
	"time"
)

// Tier is one level of the escalation chain
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierFallback  Tier = "fallback"
	TierEmergency Tier = "emergency"
)

// OrderedTiers is the only escalation order the router ever uses
var OrderedTiers = []Tier{TierPrimary, TierFallback, TierEmergency}

// CallParams holds default call parameters carried by a tier
type CallParams struct {
	Temperature    *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP           *float32 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty" yaml:"response_format,omitempty"` // "text" or "json_object"

	// Image defaults
	Width         int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height        int     `json:"height,omitempty" yaml:"height,omitempty"`
	Steps         int     `json:"steps,omitempty" yaml:"steps,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty" yaml:"guidance_scale,omitempty"`
	Scheduler     string  `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
}

// TierConfig binds a tier to a concrete model and provider
type TierConfig struct {
	Model       string        `json:"model"`
	Provider    string        `json:"provider"`
	Params      CallParams    `json:"params"`
	CostPerCall float64       `json:"cost_per_call"`
	AvgLatency  time.Duration `json:"avg_latency"`
	Reliability float64       `json:"reliability"`
}

// WithModel returns a copy of the tier bound to another model
func (c TierConfig) WithModel(model string) TierConfig {
	c.Model = model
	return c
}

// ResolvedModelConfig is produced per call by the router
type ResolvedModelConfig struct {
	TaskIdentifier         string                 `json:"task_identifier"`
	ResolvedTaskIdentifier TaskID                 `json:"resolved_task_identifier"`
	Primary                *TierConfig            `json:"primary"`
	Fallback               *TierConfig            `json:"fallback,omitempty"`
	Emergency              *TierConfig            `json:"emergency,omitempty"`
	Provider               string                 `json:"provider"`
	Params                 CallParams             `json:"params"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
}

// Tier returns the configuration for the given tier, or nil when absent
func (c *ResolvedModelConfig) Tier(tier Tier) *TierConfig {
	switch tier {
	case TierPrimary:
		return c.Primary
	case TierFallback:
		return c.Fallback
	case TierEmergency:
		return c.Emergency
	default:
		return nil
	}
}

// RateLimit is the minimum spacing between calls to one provider
type RateLimit struct {
	Provider    string        `json:"provider"`
	MinInterval time.Duration `json:"min_interval"`
}
