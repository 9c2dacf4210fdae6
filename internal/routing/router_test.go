package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/availability"
	"github.com/architect-ai/model-router/internal/invocation"
	"github.com/architect-ai/model-router/internal/overrides"
	"github.com/architect-ai/model-router/internal/performance"
	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/throttle"
	"github.com/architect-ai/model-router/internal/types"
)

// countingProvider is a text and image provider double with a call counter
type countingProvider struct {
	name     string
	content  string
	err      error
	probeErr error

	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Complete(_ context.Context, req *types.TextRequest) (*types.ProviderResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &types.ProviderResponse{Model: req.Model, Provider: p.name, Content: p.content}, nil
}

func (p *countingProvider) GenerateImage(_ context.Context, req *types.ImageRequest) (*types.ProviderResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &types.ProviderResponse{Model: req.Model, Provider: p.name, Content: p.content}, nil
}

func (p *countingProvider) Probe(context.Context) error { return p.probeErr }

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func failing(name string) *countingProvider {
	return &countingProvider{
		name: name,
		err:  providers.StatusError(name, "", http.StatusInternalServerError, "boom", nil),
	}
}

func succeeding(name, content string) *countingProvider {
	return &countingProvider{name: name, content: content}
}

type testEnv map[string]string

func (e testEnv) lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

type testRouter struct {
	*Router
	env testEnv
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTables() (map[types.TaskID]registry.TierCandidates, map[types.TaskID]types.TaskID) {
	tiers := map[types.TaskID]registry.TierCandidates{
		types.TaskDesignSpecification: {
			Primary:   &types.TierConfig{Model: "primary-model", Provider: "p1", CostPerCall: 0.01, AvgLatency: 5 * time.Second},
			Fallback:  &types.TierConfig{Model: "fallback-model", Provider: "p2", CostPerCall: 0.002},
			Emergency: &types.TierConfig{Model: "emergency-model", Provider: "p3", CostPerCall: 0.05},
		},
		types.TaskPortfolioStyleExtraction: {
			Primary: &types.TierConfig{Model: "solo-model", Provider: "p1"},
		},
		types.TaskTechnicalDrawing: {
			Primary:  &types.TierConfig{Model: "draw-model", Provider: "img1", Params: types.CallParams{Width: 1024, Height: 1024}},
			Fallback: &types.TierConfig{Model: "draw-fallback", Provider: "img2"},
		},
	}
	aliases := map[types.TaskID]types.TaskID{
		"DNA_GENERATION": types.TaskDesignSpecification,
		"FLOOR_PLAN":     types.TaskTechnicalDrawing,
	}
	return tiers, aliases
}

func createTestRouter(t *testing.T, text []*countingProvider, images []*countingProvider) *testRouter {
	t.Helper()
	logger := testLogger()

	tiers, aliases := testTables()
	reg, err := registry.NewRegistryFromTables(tiers, aliases)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	env := testEnv{}
	ov := overrides.NewResolver(overrides.WithLookup(env.lookup))

	set := providers.NewSet(logger)
	for _, p := range text {
		set.RegisterText(p)
	}
	for _, p := range images {
		set.RegisterImage(p)
	}

	tracker, err := performance.NewTracker(performance.DefaultCapacity, logger)
	if err != nil {
		t.Fatalf("Failed to build tracker: %v", err)
	}
	pacer := throttle.NewPacer(func(string) time.Duration { return 0 }, logger)
	engine := invocation.NewEngine(set, tracker, pacer, invocation.Config{}, logger)
	monitor := availability.NewMonitor(set, logger)

	router := NewRouter(reg, ov, monitor, engine, tracker, logger)
	t.Cleanup(router.Close)
	return &testRouter{Router: router, env: env}
}

func TestGetModelConfig_EveryTaskHasPrimary(t *testing.T) {
	logger := testLogger()
	set := providers.NewSet(logger)
	tracker, _ := performance.NewTracker(performance.DefaultCapacity, logger)
	router := NewRouter(
		registry.NewRegistry(),
		overrides.NewResolver(overrides.WithLookup(func(string) (string, bool) { return "", false })),
		availability.NewMonitor(set, logger),
		invocation.NewEngine(set, tracker, nil, invocation.Config{}, logger),
		tracker,
		logger,
	)
	defer router.Close()

	for _, task := range types.AllTasks {
		cfg, err := router.GetModelConfig(string(task))
		if err != nil {
			t.Errorf("GetModelConfig(%s) failed: %v", task, err)
			continue
		}
		if cfg.Primary == nil || cfg.Primary.Model == "" {
			t.Errorf("Task %s resolved without a primary model", task)
		}
		if cfg.ResolvedTaskIdentifier != task {
			t.Errorf("Expected resolved task %s, got %s", task, cfg.ResolvedTaskIdentifier)
		}
	}

	for alias := range registry.NewRegistry().Aliases() {
		if _, err := router.GetModelConfig(strings.ToLower(string(alias))); err != nil {
			t.Errorf("Alias %s did not resolve: %v", alias, err)
		}
	}
}

func TestGetModelConfig_UnknownTask(t *testing.T) {
	p1 := succeeding("p1", "ok")
	router := createTestRouter(t, []*countingProvider{p1}, nil)

	_, err := router.GetModelConfig("FOO_BAR")
	if !types.IsConfigurationError(err) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "FOO_BAR") {
		t.Errorf("Expected error to name the task, got %q", err.Error())
	}

	result, err := router.InvokeText(context.Background(), "FOO_BAR", &types.TextParams{UserPrompt: "hi"})
	if !types.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError from InvokeText, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result for configuration error, got %+v", result)
	}
	if p1.Calls() != 0 {
		t.Errorf("Expected no provider calls, got %d", p1.Calls())
	}
}

func TestGetModelConfig_AliasPreservesRequestedTask(t *testing.T) {
	router := createTestRouter(t, nil, nil)

	cfg, err := router.GetModelConfig("dna-generation")
	if err != nil {
		t.Fatalf("GetModelConfig failed: %v", err)
	}
	if cfg.TaskIdentifier != "dna-generation" {
		t.Errorf("Expected requested identifier preserved, got %s", cfg.TaskIdentifier)
	}
	if cfg.ResolvedTaskIdentifier != types.TaskDesignSpecification {
		t.Errorf("Expected %s, got %s", types.TaskDesignSpecification, cfg.ResolvedTaskIdentifier)
	}
	if alias, _ := cfg.Metadata["alias"].(bool); !alias {
		t.Error("Expected alias metadata to be true")
	}
	if cfg.Provider != "p1" {
		t.Errorf("Expected top-level provider p1, got %s", cfg.Provider)
	}
}

func TestGetModelConfig_EnvOverride(t *testing.T) {
	router := createTestRouter(t, nil, nil)
	router.env["MODEL_ROUTER_DESIGN_SPECIFICATION_PRIMARY"] = "custom-model-x"

	cfg, err := router.GetModelConfig("DESIGN_SPECIFICATION")
	if err != nil {
		t.Fatalf("GetModelConfig failed: %v", err)
	}
	if cfg.Primary.Model != "custom-model-x" {
		t.Errorf("Expected primary model custom-model-x, got %s", cfg.Primary.Model)
	}
	if cfg.Primary.Provider != "p1" {
		t.Errorf("Expected provider to stay p1 for an unprefixed model, got %s", cfg.Primary.Provider)
	}
	if cfg.Fallback.Model != "fallback-model" {
		t.Errorf("Expected fallback untouched, got %s", cfg.Fallback.Model)
	}

	// overrides are read per call
	delete(router.env, "MODEL_ROUTER_DESIGN_SPECIFICATION_PRIMARY")
	cfg, _ = router.GetModelConfig("DESIGN_SPECIFICATION")
	if cfg.Primary.Model != "primary-model" {
		t.Errorf("Expected registry default after unsetting override, got %s", cfg.Primary.Model)
	}
}

func TestGetModelConfig_OverrideSwitchesProvider(t *testing.T) {
	router := createTestRouter(t, nil, nil)
	router.env["MODEL_ROUTER_DNA_GENERATION_FALLBACK"] = "claude-3-5-haiku-20241022"
	router.env["MODEL_ROUTER_FLOOR_PLAN_PRIMARY"] = "dall-e-3"

	cfg, err := router.GetModelConfig("DNA_GENERATION")
	if err != nil {
		t.Fatalf("GetModelConfig failed: %v", err)
	}
	if cfg.Fallback.Provider != registry.ProviderAnthropic {
		t.Errorf("Expected anthropic provider, got %s", cfg.Fallback.Provider)
	}

	cfg, err = router.GetModelConfig("FLOOR_PLAN")
	if err != nil {
		t.Fatalf("GetModelConfig failed: %v", err)
	}
	if cfg.Primary.Provider != registry.ProviderOpenAIImage {
		t.Errorf("Expected openai-image provider, got %s", cfg.Primary.Provider)
	}
}

func TestGetModelConfig_ImageModelOnTextTaskKeepsProvider(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"gpt-image", "gpt-image-1"},
		{"dall-e", "dall-e-3"},
		{"flux", "black-forest-labs/FLUX.1-schnell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := createTestRouter(t, nil, nil)
			router.env["MODEL_ROUTER_DESIGN_SPECIFICATION_FALLBACK"] = tt.model

			cfg, err := router.GetModelConfig("DESIGN_SPECIFICATION")
			if err != nil {
				t.Fatalf("GetModelConfig failed: %v", err)
			}
			if cfg.Fallback.Model != tt.model {
				t.Errorf("Expected fallback model %s, got %s", tt.model, cfg.Fallback.Model)
			}
			if cfg.Fallback.Provider != "p2" {
				t.Errorf("Expected registry provider p2 kept, got %s", cfg.Fallback.Provider)
			}
		})
	}
}

func TestGetModelConfig_SharedEmergencyCreatesTier(t *testing.T) {
	router := createTestRouter(t, nil, nil)

	cfg, _ := router.GetModelConfig("PORTFOLIO_STYLE_EXTRACTION")
	if cfg.Emergency != nil {
		t.Fatalf("Expected no emergency tier by default, got %+v", cfg.Emergency)
	}

	router.env["MODEL_ROUTER_EMERGENCY_DEFAULT"] = "gpt-4o"
	cfg, _ = router.GetModelConfig("PORTFOLIO_STYLE_EXTRACTION")
	if cfg.Emergency == nil {
		t.Fatal("Expected shared emergency override to add an emergency tier")
	}
	if cfg.Emergency.Model != "gpt-4o" || cfg.Emergency.Provider != registry.ProviderOpenAI {
		t.Errorf("Unexpected emergency tier %s/%s", cfg.Emergency.Provider, cfg.Emergency.Model)
	}
}

func TestGetModelConfig_StrictRouting(t *testing.T) {
	tests := []struct {
		name        string
		env         testEnv
		expectError bool
		expectModel string
	}{
		{
			name:        "strict without primary override",
			env:         testEnv{"MODEL_ROUTER_STRICT_ROUTING": "true"},
			expectError: true,
		},
		{
			name: "strict with primary override",
			env: testEnv{
				"MODEL_ROUTER_STRICT_ROUTING":               "1",
				"MODEL_ROUTER_DESIGN_SPECIFICATION_PRIMARY": "reviewed-model",
			},
			expectModel: "reviewed-model",
		},
		{
			name:        "strict disabled",
			env:         testEnv{"MODEL_ROUTER_STRICT_ROUTING": "false"},
			expectModel: "primary-model",
		},
		{
			name:        "no flag",
			env:         testEnv{},
			expectModel: "primary-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := createTestRouter(t, nil, nil)
			for k, v := range tt.env {
				router.env[k] = v
			}

			cfg, err := router.GetModelConfig("DESIGN_SPECIFICATION")
			if tt.expectError {
				if !types.IsConfigurationError(err) {
					t.Errorf("Expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cfg.Primary.Model != tt.expectModel {
				t.Errorf("Expected primary %s, got %s", tt.expectModel, cfg.Primary.Model)
			}
		})
	}
}

func TestInvokeText_PrimarySucceeds(t *testing.T) {
	p1, p2, p3 := succeeding("p1", "from primary"), succeeding("p2", "from fallback"), succeeding("p3", "from emergency")
	router := createTestRouter(t, []*countingProvider{p1, p2, p3}, nil)

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %s", result.Error)
	}
	if result.Metadata.SelectionTier != types.TierPrimary {
		t.Errorf("Expected primary tier, got %s", result.Metadata.SelectionTier)
	}
	if result.RawContent != "from primary" {
		t.Errorf("Unexpected content %q", result.RawContent)
	}
	if result.Metadata.Model != "primary-model" || result.Metadata.Provider != "p1" {
		t.Errorf("Unexpected metadata %+v", result.Metadata)
	}
	if p2.Calls() != 0 || p3.Calls() != 0 {
		t.Errorf("Expected lower tiers untouched, got %d/%d calls", p2.Calls(), p3.Calls())
	}
}

func TestInvokeText_EscalatesToFallback(t *testing.T) {
	p1, p2, p3 := failing("p1"), succeeding("p2", "from fallback"), succeeding("p3", "from emergency")
	router := createTestRouter(t, []*countingProvider{p1, p2, p3}, nil)

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %s", result.Error)
	}
	if result.Metadata.SelectionTier != types.TierFallback {
		t.Errorf("Expected fallback tier, got %s", result.Metadata.SelectionTier)
	}
	if p1.Calls() != 1 {
		t.Errorf("Expected primary attempted once, got %d", p1.Calls())
	}
	if p3.Calls() != 0 {
		t.Errorf("Expected emergency never invoked, got %d", p3.Calls())
	}
	if result.Metadata.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", result.Metadata.Attempts)
	}
}

func TestInvokeText_ExhaustedChain(t *testing.T) {
	p1, p2, p3 := failing("p1"), failing("p2"), failing("p3")
	router := createTestRouter(t, []*countingProvider{p1, p2, p3}, nil)

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Exhausted chain must not return an error, got %v", err)
	}
	if result.Success {
		t.Fatal("Expected failure result")
	}
	if result.Error == "" {
		t.Error("Expected error message on exhausted chain")
	}
	total := p1.Calls() + p2.Calls() + p3.Calls()
	if total != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", total)
	}
	if result.Metadata.TaskIdentifier != "DESIGN_SPECIFICATION" {
		t.Errorf("Unexpected task identifier %s", result.Metadata.TaskIdentifier)
	}
	if result.Metadata.Timestamp.IsZero() {
		t.Error("Expected timestamp on exhausted result")
	}

	stats := router.Stats()
	for _, model := range []string{"primary-model", "fallback-model", "emergency-model"} {
		entry, ok := stats[performance.Key(string(types.TaskDesignSpecification), model)]
		if !ok || entry.Failures != 1 {
			t.Errorf("Expected one recorded failure for %s, got %+v", model, entry)
		}
	}
}

func TestInvokeText_UnregisteredProviderEscalates(t *testing.T) {
	p2 := succeeding("p2", "from fallback")
	router := createTestRouter(t, []*countingProvider{p2}, nil)

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if result.Metadata.SelectionTier != types.TierFallback {
		t.Errorf("Expected fallback after unregistered primary, got %s", result.Metadata.SelectionTier)
	}
}

func TestInvokeText_OptionsDisableTiers(t *testing.T) {
	tests := []struct {
		name          string
		options       types.InvocationOptions
		expectCalls   [3]int
		expectSuccess bool
	}{
		{
			name:          "fallback disabled",
			options:       types.InvocationOptions{DisableFallback: true},
			expectCalls:   [3]int{1, 0, 1},
			expectSuccess: true,
		},
		{
			name:        "fallback and emergency disabled",
			options:     types.InvocationOptions{DisableFallback: true, DisableEmergency: true},
			expectCalls: [3]int{1, 0, 0},
		},
		{
			name:          "emergency disabled",
			options:       types.InvocationOptions{DisableEmergency: true},
			expectCalls:   [3]int{1, 1, 0},
			expectSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, p2, p3 := failing("p1"), failing("p2"), succeeding("p3", "ok")
			router := createTestRouter(t, []*countingProvider{p1, p2, p3}, nil)

			result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi", Options: tt.options})
			if err != nil {
				t.Fatalf("InvokeText failed: %v", err)
			}
			if result.Success != tt.expectSuccess {
				t.Errorf("Expected success=%v, got %v", tt.expectSuccess, result.Success)
			}
			got := [3]int{p1.Calls(), p2.Calls(), p3.Calls()}
			if got != tt.expectCalls {
				t.Errorf("Expected calls %v, got %v", tt.expectCalls, got)
			}
		})
	}
}

func TestInvokeText_EmptyStructuredOutputDoesNotEscalate(t *testing.T) {
	p1 := succeeding("p1", "")
	p2 := succeeding("p2", `{"from":"fallback-tier"}`)
	router := createTestRouter(t, []*countingProvider{p1, p2, succeeding("p3", "x")}, nil)

	fallback := map[string]interface{}{"default": true}
	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{
		UserPrompt: "hi",
		JSON:       true,
		Fallback:   fallback,
	})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %s", result.Error)
	}
	if result.Metadata.SelectionTier != types.TierPrimary {
		t.Errorf("Expected primary tier, got %s", result.Metadata.SelectionTier)
	}
	if data, ok := result.Data.(map[string]interface{}); !ok || data["default"] != true {
		t.Errorf("Expected caller fallback, got %v", result.Data)
	}
	if p2.Calls() != 0 {
		t.Errorf("Expected no escalation, fallback provider called %d times", p2.Calls())
	}
}

func TestInvokeText_AttemptsUnavailableProvider(t *testing.T) {
	p1 := succeeding("p1", "from primary")
	p1.probeErr = providers.StatusError("p1", "", http.StatusUnauthorized, "bad key", nil)
	p2 := succeeding("p2", "from fallback")
	router := createTestRouter(t, []*countingProvider{p1, p2, succeeding("p3", "x")}, nil)

	if err := router.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if result.Metadata.SelectionTier != types.TierPrimary {
		t.Errorf("Expected primary tier, got %s", result.Metadata.SelectionTier)
	}
	if p1.Calls() != 1 {
		t.Errorf("Expected primary to be attempted once, got %d calls", p1.Calls())
	}
	if p2.Calls() != 0 {
		t.Errorf("Expected fallback untouched, got %d calls", p2.Calls())
	}
	if len(result.Metadata.UnavailableTiers) != 1 || result.Metadata.UnavailableTiers[0] != types.TierPrimary {
		t.Errorf("Expected primary in unavailable tiers, got %v", result.Metadata.UnavailableTiers)
	}
	if result.Metadata.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Metadata.Attempts)
	}
}

func TestInvokeText_LastTierAlwaysAttempted(t *testing.T) {
	p1 := succeeding("p1", "solo")
	p1.probeErr = providers.StatusError("p1", "", http.StatusForbidden, "forbidden", nil)
	router := createTestRouter(t, []*countingProvider{p1}, nil)

	if err := router.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	result, err := router.InvokeText(context.Background(), "PORTFOLIO_STYLE_EXTRACTION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected the only tier to be attempted, got error %s", result.Error)
	}
	if p1.Calls() != 1 {
		t.Errorf("Expected 1 call, got %d", p1.Calls())
	}
}

func TestInvokeText_CancelledContext(t *testing.T) {
	p1 := succeeding("p1", "x")
	router := createTestRouter(t, []*countingProvider{p1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := router.InvokeText(ctx, "DESIGN_SPECIFICATION", &types.TextParams{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Expected result, got error %v", err)
	}
	if result.Success {
		t.Error("Expected failure for cancelled context")
	}
	if p1.Calls() != 0 {
		t.Errorf("Expected no calls, got %d", p1.Calls())
	}
	if !strings.Contains(result.Error, context.Canceled.Error()) {
		t.Errorf("Expected cancellation in error, got %q", result.Error)
	}
}

func TestInvokeText_ParseFailureDoesNotEscalate(t *testing.T) {
	p1, p2 := succeeding("p1", "definitely not json"), succeeding("p2", `{"ok":true}`)
	router := createTestRouter(t, []*countingProvider{p1, p2}, nil)
	fallback := map[string]interface{}{"ok": false}

	result, err := router.InvokeText(context.Background(), "DESIGN_SPECIFICATION", &types.TextParams{
		UserPrompt: "hi",
		JSON:       true,
		Fallback:   fallback,
	})
	if err != nil {
		t.Fatalf("InvokeText failed: %v", err)
	}
	if !result.Success || result.Metadata.SelectionTier != types.TierPrimary {
		t.Fatalf("Expected primary success, got %+v", result)
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok || data["ok"] != false {
		t.Errorf("Expected fallback data, got %#v", result.Data)
	}
	if p2.Calls() != 0 {
		t.Errorf("Parse failure must not escalate, fallback called %d times", p2.Calls())
	}
}

func TestInvokeImage_Escalates(t *testing.T) {
	img1, img2 := failing("img1"), succeeding("img2", "https://cdn.example/plan.png")
	router := createTestRouter(t, nil, []*countingProvider{img1, img2})

	result, err := router.InvokeImage(context.Background(), "floor plan", &types.ImageParams{Prompt: "plan"})
	if err != nil {
		t.Fatalf("InvokeImage failed: %v", err)
	}
	if !result.Success || result.Metadata.SelectionTier != types.TierFallback {
		t.Fatalf("Expected fallback success, got %+v", result)
	}
	if result.RawContent != "https://cdn.example/plan.png" {
		t.Errorf("Unexpected image url %s", result.RawContent)
	}
}

func TestInvoke_KindMismatch(t *testing.T) {
	router := createTestRouter(t, nil, nil)

	_, err := router.InvokeImage(context.Background(), "DESIGN_SPECIFICATION", &types.ImageParams{Prompt: "x"})
	if !types.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError for text task as image, got %v", err)
	}
	_, err = router.InvokeText(context.Background(), "FLOOR_PLAN", &types.TextParams{UserPrompt: "x"})
	if !types.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError for image task as text, got %v", err)
	}
}

func TestEscalator_ConfigurationErrorNotEscalated(t *testing.T) {
	router := createTestRouter(t, nil, nil)
	escalator := NewEscalator(router, nil, testLogger())

	calls := 0
	_, err := escalator.Execute(context.Background(), "DESIGN_SPECIFICATION", types.InvocationOptions{},
		func(context.Context, *types.ResolvedModelConfig, types.Tier) (*types.ProviderResponse, error) {
			calls++
			return nil, types.NewConfigurationError("DESIGN_SPECIFICATION", "bad schema")
		})
	if !types.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestEscalator_TierOrderNeverChanges(t *testing.T) {
	router := createTestRouter(t, nil, nil)
	escalator := NewEscalator(router, nil, testLogger())

	var order []types.Tier
	result, err := escalator.Execute(context.Background(), "DESIGN_SPECIFICATION", types.InvocationOptions{},
		func(_ context.Context, _ *types.ResolvedModelConfig, tier types.Tier) (*types.ProviderResponse, error) {
			order = append(order, tier)
			return nil, errors.New("transient")
		})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("Expected exhausted chain")
	}
	expected := []types.Tier{types.TierPrimary, types.TierFallback, types.TierEmergency}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Attempt %d: expected %s, got %s", i, expected[i], order[i])
		}
	}
}

func TestExplain(t *testing.T) {
	p1 := succeeding("p1", "x")
	p1.probeErr = providers.StatusError("p1", "", http.StatusUnauthorized, "bad key", nil)
	router := createTestRouter(t, []*countingProvider{p1, succeeding("p2", "y"), succeeding("p3", "z")}, nil)
	router.env["MODEL_ROUTER_DNA_GENERATION_EMERGENCY"] = "gpt-4o"

	if err := router.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	decision, err := router.Explain("DNA_GENERATION", types.InvocationOptions{})
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if decision.SelectedTier != types.TierPrimary {
		t.Errorf("Expected primary selected, got %s", decision.SelectedTier)
	}
	if len(decision.TierChain) != 3 {
		t.Fatalf("Expected 3 tiers, got %d", len(decision.TierChain))
	}
	if decision.TierChain[0].Available {
		t.Error("Expected primary to be marked unavailable")
	}
	if decision.TierChain[2].OverrideSource != "MODEL_ROUTER_DNA_GENERATION_EMERGENCY" {
		t.Errorf("Unexpected override source %q", decision.TierChain[2].OverrideSource)
	}
	if !decision.RoutingContext.Alias {
		t.Error("Expected alias in routing context")
	}
	if len(decision.Reasoning) == 0 {
		t.Error("Expected reasoning")
	}
	if p1.Calls() != 0 {
		t.Error("Explain must not invoke providers")
	}
}
