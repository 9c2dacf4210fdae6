package types

import (
	"time"
)

// Usage reports token usage when a provider returns it
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderResponse is the normalized output of a single tier invocation
type ProviderResponse struct {
	Model      string      `json:"model"`
	Provider   string      `json:"provider"`
	Content    string      `json:"content"`
	Data       interface{} `json:"data,omitempty"`
	Raw        interface{} `json:"-"`
	Usage      *Usage      `json:"usage,omitempty"`
	ParseError string      `json:"parse_error,omitempty"`
}

// ResultMetadata describes how an invocation result was produced
type ResultMetadata struct {
	Model                  string    `json:"model,omitempty"`
	Provider               string    `json:"provider,omitempty"`
	TaskIdentifier         string    `json:"taskIdentifier"`
	ResolvedTaskIdentifier TaskID    `json:"resolvedTaskIdentifier,omitempty"`
	SelectionTier          Tier      `json:"selectionTier,omitempty"`
	LatencyMs              int64     `json:"latencyMs"`
	Timestamp              time.Time `json:"timestamp"`
	Attempts               int       `json:"attempts"`
	UnavailableTiers       []Tier    `json:"unavailableTiers,omitempty"`
	RequestID              string    `json:"requestId,omitempty"`
}

// InvocationResult is returned to callers for every completed chain
type InvocationResult struct {
	Success    bool           `json:"success"`
	Data       interface{}    `json:"data,omitempty"`
	RawContent string         `json:"rawContent,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   ResultMetadata `json:"metadata"`
}

// AvailabilitySnapshot is a time-boxed belief about provider reachability
type AvailabilitySnapshot struct {
	Providers map[string]bool `json:"providers"`
	Timestamp time.Time       `json:"timestamp"`
}

// Age returns how old the snapshot is at now
func (s AvailabilitySnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// PerformanceEntry aggregates observed latency for one task and model
type PerformanceEntry struct {
	Count        int           `json:"count"`
	TotalLatency time.Duration `json:"totalLatency"`
	AvgLatency   time.Duration `json:"avgLatency"`
	LastUsed     time.Time     `json:"lastUsed"`
	Failures     int           `json:"failures"`
}
