package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// Capability declares one AI capability of a provider
type Capability string

const (
	CapTextGeneration  Capability = "text-generation"
	CapEmbeddings      Capability = "embeddings"
	CapVision          Capability = "vision"
	CapFunctionCalling Capability = "function-calling"
	CapLongContext     Capability = "long-context"
	CapFastInference   Capability = "fast-inference"
	CapJSONMode        Capability = "json-mode"
	CapStreaming       Capability = "streaming"
	CapBatch           Capability = "batch"
)

// CostTier buckets providers by price
type CostTier string

const (
	TierFree   CostTier = "free"
	TierLow    CostTier = "low"
	TierMedium CostTier = "medium"
	TierHigh   CostTier = "high"
)

// tierRank orders cost tiers for budget comparisons
func tierRank(t CostTier) int {
	switch t {
	case TierFree:
		return 0
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	}
	return 3
}

// CostProfile describes a provider's price and performance envelope
type CostProfile struct {
	Tier            CostTier
	CostPer1KInput  float64
	CostPer1KOutput float64
	AvgLatency      time.Duration
	MaxContext      int
	QualityScore    float64 // 0..1
}

// Metadata describes a registered provider
type Metadata struct {
	Name         string
	ModelID      string
	Enabled      bool
	Capabilities []Capability
	Cost         CostProfile
	PreferredFor []string
}

// Has reports whether the provider declares capability c
func (m Metadata) Has(c Capability) bool {
	for _, cap := range m.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// GenerateOptions tunes one generation call
type GenerateOptions struct {
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	JSONMode     bool
	Timeout      time.Duration
}

// Provider is one concrete AI backend
type Provider interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error)
	Embed(ctx context.Context, text, model string) ([]float32, error)
	Health(ctx context.Context) error
	Metadata() Metadata
}

// Strategy selects how providers are ranked
type Strategy string

const (
	StrategyCost     Strategy = "cost"
	StrategyQuality  Strategy = "quality"
	StrategyLatency  Strategy = "latency"
	StrategyBalanced Strategy = "balanced"
	StrategyManual   Strategy = "manual"
)

// TaskRequirements constrain provider selection for one task
type TaskRequirements struct {
	Task              string
	MaxLatency        time.Duration
	MaxCostTier       CostTier
	MinQuality        float64
	RequiredContext   int
	NeedsVision       bool
	NeedsStreaming    bool
	NeedsJSONMode     bool
	NeedsEmbeddings   bool
	PreferredProvider string
}

// defaultCallTimeout bounds a model call when the caller sets none
const defaultCallTimeout = 30 * time.Second

// Gateway presents a uniform surface over the registered providers and
// selects one per call according to the configured strategy. The
// registry is populated once at composition-root time.
type Gateway struct {
	providers map[string]Provider
	order     []string

	strategy        Strategy
	overrides       map[string]string // task -> provider name
	fallbackChain   []string
	defaultProvider string

	logger zerolog.Logger
}

// Config holds gateway construction parameters
type Config struct {
	Strategy           Strategy
	TaskModelOverrides map[string]string
	FallbackChain      []string
	DefaultProvider    string
}

// New creates a gateway with an empty registry
func New(cfg Config) *Gateway {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyBalanced
	}
	return &Gateway{
		providers:       make(map[string]Provider),
		strategy:        strategy,
		overrides:       cfg.TaskModelOverrides,
		fallbackChain:   cfg.FallbackChain,
		defaultProvider: cfg.DefaultProvider,
		logger:          log.WithComponent("gateway"),
	}
}

// Register adds a provider to the registry. Not safe for concurrent use;
// call during composition only.
func (g *Gateway) Register(p Provider) {
	name := p.Metadata().Name
	if _, exists := g.providers[name]; !exists {
		g.order = append(g.order, name)
	}
	g.providers[name] = p
}

// Providers returns the registered provider names in registration order
func (g *Gateway) Providers() []string {
	return append([]string(nil), g.order...)
}

// Usable reports whether at least one enabled provider is registered
func (g *Gateway) Usable() bool {
	for _, name := range g.order {
		if g.providers[name].Metadata().Enabled {
			return true
		}
	}
	return false
}

// fits reports whether a provider satisfies the task requirements
func fits(m Metadata, req TaskRequirements) bool {
	if !m.Enabled {
		return false
	}
	if !m.Has(CapTextGeneration) && !req.NeedsEmbeddings {
		return false
	}
	if req.NeedsEmbeddings && !m.Has(CapEmbeddings) {
		return false
	}
	if req.NeedsVision && !m.Has(CapVision) {
		return false
	}
	if req.NeedsStreaming && !m.Has(CapStreaming) {
		return false
	}
	if req.NeedsJSONMode && !m.Has(CapJSONMode) {
		return false
	}
	if req.RequiredContext > 0 && m.Cost.MaxContext < req.RequiredContext {
		return false
	}
	if req.MinQuality > 0 && m.Cost.QualityScore < req.MinQuality {
		return false
	}
	if req.MaxLatency > 0 && m.Cost.AvgLatency > req.MaxLatency {
		return false
	}
	if req.MaxCostTier != "" && tierRank(m.Cost.Tier) > tierRank(req.MaxCostTier) {
		return false
	}
	return true
}

// balancedScore is the composite ranking used by the balanced strategy
func balancedScore(m Metadata, req TaskRequirements) float64 {
	costScore := 1.0 / (1.0 + m.Cost.CostPer1KInput + m.Cost.CostPer1KOutput)
	latencyScore := 1.0 / (1.0 + m.Cost.AvgLatency.Seconds())
	bonus := 0.0
	for _, task := range m.PreferredFor {
		if task == req.Task {
			bonus = 1.0
			break
		}
	}
	return 0.4*m.Cost.QualityScore + 0.3*costScore + 0.2*latencyScore + 0.1*bonus
}

// Select chooses a provider for the given requirements
func (g *Gateway) Select(req TaskRequirements) (Provider, error) {
	var candidates []Metadata
	for _, name := range g.order {
		m := g.providers[name].Metadata()
		if fits(m, req) {
			candidates = append(candidates, m)
		}
	}

	// Manual overrides and caller preference trump ranking, but are
	// still validated against the requirements.
	if g.strategy == StrategyManual {
		if name, ok := g.overrides[req.Task]; ok {
			if p, exists := g.providers[name]; exists && fits(p.Metadata(), req) {
				g.logger.Debug().Str("provider", name).Str("task", req.Task).Msg("selected provider via override")
				return p, nil
			}
		}
	}
	if req.PreferredProvider != "" {
		if p, exists := g.providers[req.PreferredProvider]; exists && fits(p.Metadata(), req) {
			g.logger.Debug().Str("provider", req.PreferredProvider).Str("task", req.Task).Msg("selected preferred provider")
			return p, nil
		}
	}

	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			switch g.strategy {
			case StrategyCost:
				return a.Cost.CostPer1KInput+a.Cost.CostPer1KOutput < b.Cost.CostPer1KInput+b.Cost.CostPer1KOutput
			case StrategyQuality:
				return a.Cost.QualityScore > b.Cost.QualityScore
			case StrategyLatency:
				return a.Cost.AvgLatency < b.Cost.AvgLatency
			default:
				return balancedScore(a, req) > balancedScore(b, req)
			}
		})
		chosen := candidates[0].Name
		g.logger.Debug().Str("provider", chosen).Str("task", req.Task).
			Str("strategy", string(g.strategy)).Msg("selected provider")
		return g.providers[chosen], nil
	}

	// Nothing fits: walk the fallback chain, then the default
	for _, name := range g.fallbackChain {
		if p, exists := g.providers[name]; exists && p.Metadata().Enabled {
			g.logger.Warn().Str("provider", name).Str("task", req.Task).Msg("selected fallback provider")
			return p, nil
		}
	}
	if p, exists := g.providers[g.defaultProvider]; exists && p.Metadata().Enabled {
		g.logger.Warn().Str("provider", g.defaultProvider).Str("task", req.Task).Msg("selected default provider")
		return p, nil
	}

	return nil, fmt.Errorf("no provider satisfies task %q", req.Task)
}

// Generate selects a provider and runs a time-bounded generation call
func (g *Gateway) Generate(ctx context.Context, req TaskRequirements, prompt string, opts GenerateOptions) (string, error) {
	p, err := g.Select(req)
	if err != nil {
		return "", err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := metrics.NewTimer()
	out, err := p.Generate(callCtx, prompt, opts)
	timer.ObserveDurationVec(metrics.ModelCallDuration, p.Metadata().Name)
	if err != nil {
		return "", fmt.Errorf("provider %s: %w", p.Metadata().Name, err)
	}
	return out, nil
}

// Embed selects an embeddings-capable provider and vectorizes text
func (g *Gateway) Embed(ctx context.Context, req TaskRequirements, text string) ([]float32, error) {
	req.NeedsEmbeddings = true
	p, err := g.Select(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	timer := metrics.NewTimer()
	vec, err := p.Embed(callCtx, text, p.Metadata().ModelID)
	timer.ObserveDurationVec(metrics.ModelCallDuration, p.Metadata().Name)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Metadata().Name, err)
	}
	return vec, nil
}

// Health checks every enabled provider and returns the first failure
func (g *Gateway) Health(ctx context.Context) error {
	for _, name := range g.order {
		p := g.providers[name]
		if !p.Metadata().Enabled {
			continue
		}
		if err := p.Health(ctx); err != nil {
			return fmt.Errorf("provider %s unhealthy: %w", name, err)
		}
	}
	return nil
}
