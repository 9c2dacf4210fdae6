package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/architect-ai/model-router/internal/types"
)

// TierCandidates is the registry entry for one canonical task
type TierCandidates struct {
	Primary   *types.TierConfig `json:"primary"`
	Fallback  *types.TierConfig `json:"fallback,omitempty"`
	Emergency *types.TierConfig `json:"emergency,omitempty"`
}

// Resolution carries both the identifier the caller used and the canonical task
type Resolution struct {
	RequestedTask string       `json:"requested_task"`
	Normalized    types.TaskID `json:"normalized"`
	ResolvedTask  types.TaskID `json:"resolved_task"`
	Alias         bool         `json:"alias"`
}

// Registry maps task identifiers to their tier candidates
type Registry struct {
	tiers      map[types.TaskID]TierCandidates
	aliases    map[types.TaskID]types.TaskID
	rateLimits map[string]time.Duration
}

// NewRegistry creates a registry backed by the built-in tables
func NewRegistry() *Registry {
	return &Registry{
		tiers:      defaultTiers(),
		aliases:    defaultAliases(),
		rateLimits: defaultRateLimits(),
	}
}

// NewRegistryFromTables creates a registry from explicit tables. It rejects
// alias chains and entries without a primary tier.
func NewRegistryFromTables(tiers map[types.TaskID]TierCandidates, aliases map[types.TaskID]types.TaskID) (*Registry, error) {
	for task, candidates := range tiers {
		if candidates.Primary == nil || candidates.Primary.Model == "" {
			return nil, fmt.Errorf("task %s has no primary tier", task)
		}
	}
	for alias, target := range aliases {
		if _, chained := aliases[target]; chained {
			return nil, fmt.Errorf("alias %s points at alias %s", alias, target)
		}
		if _, ok := tiers[target]; !ok {
			return nil, fmt.Errorf("alias %s points at unknown task %s", alias, target)
		}
	}
	return &Registry{
		tiers:      tiers,
		aliases:    aliases,
		rateLimits: defaultRateLimits(),
	}, nil
}

// Resolve normalizes a task identifier and applies a single alias lookup
func (r *Registry) Resolve(taskIdentifier string) (*Resolution, error) {
	if strings.TrimSpace(taskIdentifier) == "" {
		return nil, types.NewConfigurationError(taskIdentifier, "task identifier must not be empty")
	}

	normalized := types.NormalizeTask(taskIdentifier)
	resolution := &Resolution{
		RequestedTask: taskIdentifier,
		Normalized:    normalized,
		ResolvedTask:  normalized,
	}

	if target, ok := r.aliases[normalized]; ok {
		resolution.ResolvedTask = target
		resolution.Alias = true
	}

	if _, ok := r.tiers[resolution.ResolvedTask]; !ok {
		return nil, types.NewConfigurationError(taskIdentifier,
			"unknown task identifier %s (no registry entry for %s)", taskIdentifier, resolution.ResolvedTask)
	}

	return resolution, nil
}

// GetTierCandidates returns the tier entry for a canonical task
func (r *Registry) GetTierCandidates(task types.TaskID) (TierCandidates, error) {
	candidates, ok := r.tiers[task]
	if !ok {
		return TierCandidates{}, types.NewConfigurationError(string(task), "no tier configuration for task %s", task)
	}
	if candidates.Primary == nil {
		return TierCandidates{}, types.NewConfigurationError(string(task), "task %s has no primary tier", task)
	}
	return candidates, nil
}

// Tasks returns the canonical tasks known to the registry, sorted
func (r *Registry) Tasks() []types.TaskID {
	tasks := make([]types.TaskID, 0, len(r.tiers))
	for task := range r.tiers {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
	return tasks
}

// Aliases returns a copy of the alias table
func (r *Registry) Aliases() map[types.TaskID]types.TaskID {
	aliases := make(map[types.TaskID]types.TaskID, len(r.aliases))
	for alias, target := range r.aliases {
		aliases[alias] = target
	}
	return aliases
}

// Providers returns every provider hint referenced by the table
func (r *Registry) Providers() []string {
	seen := make(map[string]bool)
	for _, candidates := range r.tiers {
		for _, tier := range []*types.TierConfig{candidates.Primary, candidates.Fallback, candidates.Emergency} {
			if tier != nil {
				seen[tier.Provider] = true
			}
		}
	}
	providers := make([]string, 0, len(seen))
	for name := range seen {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// GetRateLimiting returns the minimum inter-call interval for a provider.
// A zero interval means the provider is not paced.
func (r *Registry) GetRateLimiting(provider string) types.RateLimit {
	return types.RateLimit{
		Provider:    provider,
		MinInterval: r.rateLimits[provider],
	}
}

// SetRateLimit overrides the pacing interval for a provider
func (r *Registry) SetRateLimit(provider string, interval time.Duration) {
	r.rateLimits[provider] = interval
}

// ProviderFamily maps a provider hint to the credential family it shares,
// so "openai-image" is probed and reported as "openai".
func ProviderFamily(provider string) string {
	return strings.TrimSuffix(provider, "-image")
}
