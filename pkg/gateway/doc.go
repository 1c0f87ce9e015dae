/*
Package gateway routes model calls to the best available AI provider.

Providers register with static metadata (capabilities, cost, quality,
latency, preferred tasks) and the gateway selects one per call according to
the configured strategy. A deterministic local provider is always available,
so the pipeline degrades to heuristic enrichment instead of failing when no
external provider is configured.

# Architecture

	┌──────────────────── MODEL GATEWAY ────────────────────┐
	│                                                        │
	│  Generate(task, prompt)                                │
	│      │                                                 │
	│      ▼                                                 │
	│  ┌──────────────┐     ┌───────────────────────┐       │
	│  │  Filter       │────▶│  Rank by strategy      │       │
	│  │  - enabled    │     │  - cost                │       │
	│  │  - capability │     │  - quality             │       │
	│  │  - min quality│     │  - latency             │       │
	│  │  - max cost   │     │  - balanced (weighted) │       │
	│  │  - context    │     │  - manual (overrides)  │       │
	│  └──────────────┘     └──────────┬────────────┘       │
	│                                   │                    │
	│         no candidates             ▼                    │
	│      ┌───────────────┐    ┌─────────────┐             │
	│      │ fallback chain │───▶│  Provider   │             │
	│      │ then default   │    │  .Generate  │             │
	│      └───────────────┘    └─────────────┘             │
	└───────────────────────────────────────────────────────┘

# Selection Strategies

cost: cheapest per input token wins.

quality: highest quality score wins.

latency: lowest average latency wins.

balanced: weighted blend favouring quality, discounting cost and latency,
with a bonus for providers that list the task in PreferredFor:

	score = 0.4·quality + 0.3·1/(1+cost) + 0.2·1/(1+latency) + 0.1·affinity

manual: TaskModelOverrides maps task names directly to provider names;
tasks without an override fall back to balanced ranking.

A request's PreferredProvider wins outright when that provider passes the
requirement filter.

# Providers

AnthropicProvider wraps the official SDK and is enabled only when an API
key is configured. LocalProvider is always enabled at quality 0.2: it
generates summaries by sectioning heuristics and produces deterministic
256-dimension hashed embeddings, which keeps tests hermetic and gives
air-gapped deployments a working pipeline.

# Usage

	gw := gateway.New(gateway.Config{Strategy: gateway.StrategyBalanced})
	gw.Register(gateway.NewAnthropicProvider(anthropicCfg))
	gw.Register(gateway.NewLocalProvider())

	out, err := gw.Generate(ctx, gateway.TaskRequirements{
		Task:       "summarization",
		MinQuality: 0.5,
	}, prompt, gateway.GenerateOptions{MaxTokens: 500})

# See Also

  - pkg/tools - task-level wrappers over the gateway
  - pkg/config - provider configuration format
*/
package gateway
