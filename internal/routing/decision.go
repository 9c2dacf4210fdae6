package routing

import (
	"fmt"
	"time"

	"github.com/architect-ai/model-router/internal/types"
)

// RoutingDecision describes how a task would be routed right now
type RoutingDecision struct {
	TaskIdentifier string       `json:"task_identifier"`
	ResolvedTask   types.TaskID `json:"resolved_task"`

	// The tier that would be attempted first
	SelectedTier     types.Tier `json:"selected_tier"`
	SelectedModel    string     `json:"selected_model"`
	SelectedProvider string     `json:"selected_provider"`

	// Human-readable reasoning for the decision
	Reasoning []string `json:"reasoning"`

	EstimatedCost    float64       `json:"estimated_cost"`
	EstimatedLatency time.Duration `json:"estimated_latency"`

	// Every configured tier in escalation order
	TierChain []TierOption `json:"tier_chain"`

	RoutingContext RoutingContext `json:"routing_context"`
}

// TierOption is one entry of the escalation chain
type TierOption struct {
	Tier            types.Tier    `json:"tier"`
	Model           string        `json:"model"`
	Provider        string        `json:"provider"`
	Available       bool          `json:"available"`
	CostPerCall     float64       `json:"cost_per_call"`
	AvgLatency      time.Duration `json:"avg_latency"`
	Reliability     float64       `json:"reliability"`
	ObservedLatency time.Duration `json:"observed_latency,omitempty"`
	ObservedCalls   int           `json:"observed_calls,omitempty"`
	OverrideSource  string        `json:"override_source,omitempty"`
}

// RoutingContext contains additional context about the routing decision
type RoutingContext struct {
	Alias          bool            `json:"alias"`
	StrictRouting  bool            `json:"strict_routing"`
	ProviderHealth map[string]bool `json:"provider_health"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Explain builds a routing decision for taskIdentifier without invoking anything
func (r *Router) Explain(taskIdentifier string, opts types.InvocationOptions) (*RoutingDecision, error) {
	cfg, err := r.GetModelConfig(taskIdentifier)
	if err != nil {
		return nil, err
	}

	snapshot := r.monitor.GetSnapshot()
	sources, _ := cfg.Metadata["overrideSources"].(map[string]string)
	alias, _ := cfg.Metadata["alias"].(bool)
	strict, _ := cfg.Metadata["strictRouting"].(bool)

	decision := &RoutingDecision{
		TaskIdentifier: taskIdentifier,
		ResolvedTask:   cfg.ResolvedTaskIdentifier,
		RoutingContext: RoutingContext{
			Alias:          alias,
			StrictRouting:  strict,
			ProviderHealth: snapshot.Providers,
			Timestamp:      time.Now(),
		},
	}

	if alias {
		decision.Reasoning = append(decision.Reasoning,
			fmt.Sprintf("Alias %s resolves to %s", types.NormalizeTask(taskIdentifier), cfg.ResolvedTaskIdentifier))
	}

	plan := buildPlan(cfg, opts)
	for _, step := range plan {
		option := TierOption{
			Tier:           step.tier,
			Model:          step.config.Model,
			Provider:       step.config.Provider,
			Available:      r.monitor.IsAvailable(step.config.Provider),
			CostPerCall:    step.config.CostPerCall,
			AvgLatency:     step.config.AvgLatency,
			Reliability:    step.config.Reliability,
			OverrideSource: sources[string(step.tier)],
		}

		if entry, ok := r.tracker.Get(string(cfg.ResolvedTaskIdentifier), step.config.Model); ok {
			option.ObservedLatency = entry.AvgLatency
			option.ObservedCalls = entry.Count
		}

		if option.OverrideSource != "" {
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("%s tier model %s set by %s", step.tier, step.config.Model, option.OverrideSource))
		}
		if !option.Available {
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("%s tier provider %s reported unavailable, attempted anyway", step.tier, step.config.Provider))
		}

		decision.TierChain = append(decision.TierChain, option)

		if decision.SelectedTier == "" {
			decision.SelectedTier = step.tier
			decision.SelectedModel = step.config.Model
			decision.SelectedProvider = step.config.Provider
			decision.EstimatedCost = step.config.CostPerCall
			decision.EstimatedLatency = step.config.AvgLatency
			if option.ObservedCalls > 0 {
				decision.EstimatedLatency = option.ObservedLatency
			}
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("Selected %s tier: %s via %s", step.tier, step.config.Model, step.config.Provider))
		}
	}

	if len(plan) == 0 {
		decision.Reasoning = append(decision.Reasoning, "Every configured tier is disabled by the invocation options")
	}

	return decision, nil
}
