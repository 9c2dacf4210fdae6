package overrides

import (
	"fmt"
	"os"
	"strings"

	"github.com/architect-ai/model-router/internal/types"
)

// DefaultPrefix is the environment prefix for routing overrides
const DefaultPrefix = "MODEL_ROUTER"

// LookupFunc reads a single environment variable
type LookupFunc func(key string) (string, bool)

// Overrides holds per-tier model overrides for one resolution. Nil means
// "use the registry default".
type Overrides struct {
	Primary   *string `json:"primary,omitempty"`
	Fallback  *string `json:"fallback,omitempty"`
	Emergency *string `json:"emergency,omitempty"`

	// Sources records which key supplied each override
	Sources map[types.Tier]string `json:"sources,omitempty"`
}

// For returns the override for a tier
func (o Overrides) For(tier types.Tier) *string {
	switch tier {
	case types.TierPrimary:
		return o.Primary
	case types.TierFallback:
		return o.Fallback
	case types.TierEmergency:
		return o.Emergency
	default:
		return nil
	}
}

// Resolver reads model overrides from the environment at call time
type Resolver struct {
	prefix string
	lookup LookupFunc
}

// Option configures a Resolver
type Option func(*Resolver)

// WithPrefix sets the environment key prefix
func WithPrefix(prefix string) Option {
	return func(r *Resolver) {
		if prefix != "" {
			r.prefix = strings.TrimSuffix(strings.ToUpper(prefix), "_")
		}
	}
}

// WithLookup replaces os.LookupEnv, mainly for tests
func WithLookup(lookup LookupFunc) Option {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// NewResolver creates an override resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		prefix: DefaultPrefix,
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the environment key for a task and tier
func (r *Resolver) Key(task types.TaskID, tier types.Tier) string {
	return fmt.Sprintf("%s_%s_%s", r.prefix, task, strings.ToUpper(string(tier)))
}

// SharedEmergencyKey is consulted when no task-specific emergency key is set
func (r *Resolver) SharedEmergencyKey() string {
	return r.prefix + "_EMERGENCY_DEFAULT"
}

// StrictRoutingKey toggles strict routing
func (r *Resolver) StrictRoutingKey() string {
	return r.prefix + "_STRICT_ROUTING"
}

// GetOverrides reads overrides for the requested task, then for the resolved
// canonical task when the two differ. The emergency tier falls back to the
// shared default key.
func (r *Resolver) GetOverrides(requested, resolved types.TaskID) Overrides {
	result := Overrides{Sources: make(map[types.Tier]string)}

	candidates := []types.TaskID{requested}
	if resolved != "" && resolved != requested {
		candidates = append(candidates, resolved)
	}

	for _, tier := range types.OrderedTiers {
		for _, task := range candidates {
			key := r.Key(task, tier)
			if value, ok := r.get(key); ok {
				result.set(tier, value, key)
				break
			}
		}
	}

	if result.Emergency == nil {
		key := r.SharedEmergencyKey()
		if value, ok := r.get(key); ok {
			result.set(types.TierEmergency, value, key)
		}
	}

	return result
}

// IsStrictRoutingEnabled reports whether missing primary overrides are errors
func (r *Resolver) IsStrictRoutingEnabled() bool {
	value, ok := r.get(r.StrictRoutingKey())
	if !ok {
		return false
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// RequirePrimary enforces strict routing for one resolution
func (r *Resolver) RequirePrimary(requested string, resolvedTask types.TaskID, o Overrides) error {
	if o.Primary != nil || !r.IsStrictRoutingEnabled() {
		return nil
	}
	return types.NewConfigurationError(requested,
		"strict routing is enabled and %s is not set", r.Key(resolvedTask, types.TierPrimary))
}

func (r *Resolver) get(key string) (string, bool) {
	value, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (o *Overrides) set(tier types.Tier, value, source string) {
	v := value
	switch tier {
	case types.TierPrimary:
		o.Primary = &v
	case types.TierFallback:
		o.Fallback = &v
	case types.TierEmergency:
		o.Emergency = &v
	}
	o.Sources[tier] = source
}
