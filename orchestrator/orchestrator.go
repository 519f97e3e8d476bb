// Package orchestrator implements the Run Orchestrator: the bounded,
// cancellable, observable control loop that coordinates the message
// builder, a model backend, the tool executor, memory, guardrails, and the
// cost router into a single run. This is the hard part of the execution
// core and the component everything else in the module exists to serve.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/checkpoint"
	"github.com/sovereignrun/agentcore/cost"
	"github.com/sovereignrun/agentcore/executor"
	"github.com/sovereignrun/agentcore/guardrail"
	"github.com/sovereignrun/agentcore/memory"
	"github.com/sovereignrun/agentcore/messagebuilder"
	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/telemetry"
)

// BackendResolver resolves a provider tag ("openai", "anthropic", "ollama",
// ...) to a model.Client. Resolution results are cached by the Orchestrator:
// each Orchestrator keeps its own backend map keyed by provider, and creation
// is idempotent per key.
type BackendResolver func(provider string) (model.Client, error)

// Options configures an Orchestrator. Resolver is required, and Executor is
// required for any run in which the model requests a tool call; other nil
// subsystems are treated as disabled rather than substituted
// with a default implementation, except Logger/Tracer which fall back to
// no-op implementations when left unconfigured.
type Options struct {
	Resolver BackendResolver

	Memory     memory.Store
	Guardrails guardrail.Engine
	Injection  guardrail.InjectionDetector
	Executor   *executor.Executor

	Router  *cost.Router
	Ledger  *cost.Ledger
	Pricing map[string]cost.Pricing // keyed by "provider/model"

	Checkpoints checkpoint.Store

	Logger telemetry.Logger
	Tracer telemetry.Tracer

	// DefaultProvider is used when a model string carries no "provider/"
	// prefix and the agent sets no explicit Provider.
	DefaultProvider string

	// Transcriber converts RunOptions.Audio into text prepended to the user
	// message. Audio transcription itself is out of scope; nil means audio
	// input, if present, contributes no text.
	Transcriber func(ctx context.Context, audio []byte) (string, error)

	ContextBuilder messagebuilder.ContextBuilder
}

// Orchestrator runs agents against a model backend via the control loop
// below. It is safe for concurrent use: multiple runs may proceed in
// parallel against one Orchestrator, sharing the backend cache, memory
// adapter, and cost ledger, but each run owns its own transcript, run id,
// trace id, and cancellation.
type Orchestrator struct {
	resolver BackendResolver

	memoryStore memory.Store
	memoryOnce  sync.Once
	memoryErr   error

	guardrails guardrail.Engine
	injection  guardrail.InjectionDetector
	exec       *executor.Executor

	router  *cost.Router
	ledger  *cost.Ledger
	pricing map[string]cost.Pricing

	checkpoints checkpoint.Store

	logger telemetry.Logger
	tracer telemetry.Tracer

	defaultProvider string
	transcriber     func(ctx context.Context, audio []byte) (string, error)
	contextBuilder  messagebuilder.ContextBuilder

	msgBuilder *messagebuilder.Builder

	backendsMu sync.Mutex
	backends   map[string]model.Client

	insightsMu       sync.Mutex
	insights         map[string][]messagebuilder.Insight
	insightScheduler *messagebuilder.InsightScheduler
	reflections      map[string]string
	costSummaryMu sync.Mutex
	costSummary   map[string]float64 // agentID -> cumulative cost

	closeOnce sync.Once
}

// New constructs an Orchestrator. Resolver is required, and so is Executor
// when the model may request tool calls; every other field is optional.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	provider := opts.DefaultProvider
	if provider == "" {
		provider = "ollama"
	}
	return &Orchestrator{
		resolver:        opts.Resolver,
		memoryStore:     opts.Memory,
		guardrails:      opts.Guardrails,
		injection:       opts.Injection,
		exec:            opts.Executor,
		router:          opts.Router,
		ledger:          opts.Ledger,
		pricing:         opts.Pricing,
		checkpoints:     opts.Checkpoints,
		logger:          logger,
		tracer:          tracer,
		defaultProvider: provider,
		transcriber:     opts.Transcriber,
		contextBuilder:  opts.ContextBuilder,
		msgBuilder:      messagebuilder.New(opts.Memory, logger),
		backends:        make(map[string]model.Client),
		insights:        make(map[string][]messagebuilder.Insight),
		insightScheduler: messagebuilder.NewInsightScheduler(),
		reflections:     make(map[string]string),
		costSummary:     make(map[string]float64),
	}
}

func randomID(prefix string, nbytes int) string {
	buf := make([]byte, nbytes)
	_, _ = rand.Read(buf)
	return prefix + "_" + hex.EncodeToString(buf)
}

func newRunID() string { return randomID("run", 6) }
func newThreadID() string { return randomID("thread", 6) }
func newTurnID() string { return randomID("turn", 6) }
func newTraceID() string { return randomID("trace", 8) }
func newSpanID() string { return randomID("span", 6) }

// resolveProvider uses agent.Provider when set, else the "provider/" prefix
// of the model string, else the orchestrator's DefaultProvider. Defaulting chain: explicit
// agent.Provider > parsed prefix > config default > "ollama".
func resolveProvider(a agent.Agent, defaultProvider string) (provider, modelName string) {
	if a.Provider != "" {
		if idx := strings.IndexByte(a.Model, '/'); idx >= 0 {
			return a.Provider, a.Model[idx+1:]
		}
		return a.Provider, a.Model
	}
	if idx := strings.IndexByte(a.Model, '/'); idx >= 0 {
		return a.Model[:idx], a.Model[idx+1:]
	}
	return defaultProvider, a.Model
}

func (o *Orchestrator) backend(provider string) (model.Client, error) {
	o.backendsMu.Lock()
	defer o.backendsMu.Unlock()
	if c, ok := o.backends[provider]; ok {
		return c, nil
	}
	if o.resolver == nil {
		return nil, fmt.Errorf("orchestrator: no backend resolver configured for provider %q", provider)
	}
	c, err := o.resolver(provider)
	if err != nil {
		return nil, err
	}
	o.backends[provider] = c
	return c, nil
}

func (o *Orchestrator) connectMemory(ctx context.Context) error {
	if o.memoryStore == nil {
		return nil
	}
	o.memoryOnce.Do(func() {
		o.memoryErr = o.memoryStore.Connect(ctx)
	})
	return o.memoryErr
}

// Close disconnects memory and drops the backend cache. Idempotent.
func (o *Orchestrator) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		if o.memoryStore != nil {
			err = o.memoryStore.Disconnect(ctx)
		}
		o.backendsMu.Lock()
		o.backends = make(map[string]model.Client)
		o.backendsMu.Unlock()
	})
	return err
}

// EstimateCost computes an ahead-of-run cost estimate without executing
// anything.
func (o *Orchestrator) EstimateCost(a agent.Agent, input string) cost.Estimate {
	provider, modelName := resolveProvider(a, o.defaultProvider)
	key := provider + "/" + modelName
	var pricing *cost.Pricing
	if p, ok := o.pricing[key]; ok {
		pricing = &p
	}
	return cost.EstimateCost(input, cost.EstimateOptions{Model: key, Pricing: pricing, ToolsLen: len(a.Tools)})
}

// GetInsights returns the accumulated insights for agentID.
func (o *Orchestrator) GetInsights(agentID string) []messagebuilder.Insight {
	o.insightsMu.Lock()
	defer o.insightsMu.Unlock()
	return append([]messagebuilder.Insight(nil), o.insights[agentID]...)
}

// AddInsight records an insight for agentID, to be injected into future
// runs' system messages.
func (o *Orchestrator) AddInsight(agentID string, insight messagebuilder.Insight) {
	o.insightsMu.Lock()
	defer o.insightsMu.Unlock()
	o.insights[agentID] = append(o.insights[agentID], insight)
}

// GetReflectionSummary returns the last end-of-run reflection summary
// recorded for agentID, if any.
func (o *Orchestrator) GetReflectionSummary(agentID string) (string, bool) {
	o.insightsMu.Lock()
	defer o.insightsMu.Unlock()
	s, ok := o.reflections[agentID]
	return s, ok
}

// GetGuardrails returns the configured guardrail engine, or nil.
func (o *Orchestrator) GetGuardrails() guardrail.Engine { return o.guardrails }

// SetConstitution swaps the active guardrail engine at runtime.
func (o *Orchestrator) SetConstitution(g guardrail.Engine) { o.guardrails = g }

// GetCostSummary returns cumulative recorded cost per agent ID.
func (o *Orchestrator) GetCostSummary() map[string]float64 {
	o.costSummaryMu.Lock()
	defer o.costSummaryMu.Unlock()
	out := make(map[string]float64, len(o.costSummary))
	for k, v := range o.costSummary {
		out[k] = v
	}
	return out
}

// GetCostRouter returns the configured cost router, or nil.
func (o *Orchestrator) GetCostRouter() *cost.Router { return o.router }

var errAbort = errors.New("orchestrator: run aborted")
