package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/cost"
	"github.com/sovereignrun/agentcore/guardrail"
	"github.com/sovereignrun/agentcore/messagebuilder"
	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/spanrecorder"
	"github.com/sovereignrun/agentcore/streamreader"
	"github.com/sovereignrun/agentcore/tools"
)

// Run executes agent a against opts via the orchestrator's control loop.
func (o *Orchestrator) Run(ctx context.Context, a agent.Agent, opts agent.RunOptions) (*agent.RunResult, error) {
	runID := newRunID()
	turnID := newTurnID()
	traceID := newTraceID()
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = newThreadID()
	}
	startTime := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.EffectiveTimeout()
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.OnRunStart != nil {
		opts.OnRunStart(runID)
	}

	recorder := spanrecorder.New(traceID, opts.OnSpan)
	fail := failFunc(recorder, startTime, a.ID, runID, opts.OnRunError)

	if err := o.connectMemory(runCtx); err != nil {
		return fail(agent.KindMemoryUnavailable, err)
	}

	registry, err := a.ToolRegistry()
	if err != nil {
		return fail(agent.KindValidationError, err)
	}

	provider, modelName, effectiveModel := o.resolveEffectiveModel(a, opts)
	if o.ledger != nil {
		est := o.EstimateCost(a, opts.Input)
		decision := o.ledger.Reserve(runID, est.ExpectedCost)
		if !decision.Allowed {
			return fail(agent.KindAgentBudgetExceeded, fmt.Errorf("Budget exceeded: %s", decision.Reason))
		}
	}

	backend, err := o.backend(provider)
	if err != nil {
		return fail(agent.KindLLMUnavailable, err)
	}

	var audioTranscript string
	if len(opts.Audio) > 0 && o.transcriber != nil {
		audioTranscript, err = o.transcriber(runCtx, opts.Audio)
		if err != nil {
			return fail(agent.KindInternalError, err)
		}
	}

	messages, err := o.msgBuilder.Build(runCtx, a, opts, threadID, audioTranscript, o.contextBuilder)
	if err != nil {
		return fail(agent.KindInternalError, err)
	}

	if insights := o.GetInsights(a.ID); len(insights) > 0 {
		admitted := o.insightScheduler.Admit(a.ID, insights)
		o.msgBuilder.EnrichMessagesWithInsights(messages, admitted)
	}

	if o.injection != nil {
		verdict, err := o.injection.Classify(runCtx, opts.Input)
		if err != nil {
			return fail(agent.KindInternalError, err)
		}
		if verdict.Blocked {
			return fail(agent.KindPolicyPromptInjectionDetected, fmt.Errorf("%s", verdict.Reason))
		}
	}

	if o.guardrails != nil {
		decision, err := o.guardrails.FilterInput(runCtx, guardrail.InputCheck{RunID: runID, AgentID: a.ID, ThreadID: threadID, Input: opts.Input})
		if err != nil {
			return fail(agent.KindInternalError, err)
		}
		if decision.Blocked {
			return fail(agent.KindPolicyInputBlocked, fmt.Errorf("Input blocked: %s", decision.Reason))
		}
	}

	if len(opts.Context) > 0 {
		messagebuilder.AddContextToMessages(messages, opts.Context)
	}

	if o.memoryStore != nil && opts.SaveHistoryOrDefault() && len(messages) > 0 {
		o.msgBuilder.SaveEntry(runCtx, threadID, messages[len(messages)-1], opts.OnMemoryError)
	}

	return o.runLoop(runCtx, a, opts, runLoopParams{
		runID: runID, turnID: turnID, threadID: threadID, startTime: startTime,
		provider: provider, modelName: modelName, effectiveModel: effectiveModel,
		backend: backend, registry: registry, recorder: recorder, fail: fail,
		messages: messages, timeout: timeout,
	})
}

// RunFromTranscript re-executes the normal control loop starting from a
// caller-supplied transcript instead of one built by the message builder,
// implementing checkpoint.Runner without checkpoint importing this package.
func (o *Orchestrator) RunFromTranscript(msgs []*model.Message, a agent.Agent) (agent.RunResult, string, error) {
	runID := newRunID()
	traceID := newTraceID()
	startTime := time.Now()

	runCtx, cancel := context.WithTimeout(context.Background(), a.EffectiveTimeout())
	defer cancel()

	recorder := spanrecorder.New(traceID, nil)
	fail := failFunc(recorder, startTime, a.ID, runID, nil)

	registry, err := a.ToolRegistry()
	if err != nil {
		_, e := fail(agent.KindValidationError, err)
		return agent.RunResult{}, "", e
	}
	provider, modelName, effectiveModel := o.resolveEffectiveModel(a, agent.RunOptions{})
	backend, err := o.backend(provider)
	if err != nil {
		_, e := fail(agent.KindLLMUnavailable, err)
		return agent.RunResult{}, "", e
	}

	res, err := o.runLoop(runCtx, a, agent.RunOptions{}, runLoopParams{
		runID: runID, turnID: newTurnID(), threadID: newThreadID(), startTime: startTime,
		provider: provider, modelName: modelName, effectiveModel: effectiveModel,
		backend: backend, registry: registry, recorder: recorder, fail: fail,
		messages: msgs, timeout: a.EffectiveTimeout(),
	})
	if err != nil {
		return agent.RunResult{}, "", err
	}
	return *res, traceID, nil
}

type runLoopParams struct {
	runID, turnID, threadID  string
	startTime                time.Time
	provider, modelName      string
	effectiveModel           string
	backend                  model.Client
	registry                 *tools.Registry
	recorder                 *spanrecorder.Recorder
	fail                     failFn
	messages                 []*model.Message
	timeout                  time.Duration
}

type failFn func(kind agent.Kind, cause error) (*agent.RunResult, error)

func failFunc(recorder *spanrecorder.Recorder, startTime time.Time, agentID, runID string, onRunError func(error, string)) failFn {
	return func(kind agent.Kind, cause error) (*agent.RunResult, error) {
		runErr := agent.Wrap(kind, cause)
		root := recorder.Record("agent.run", agent.SpanKindInternal, "", startTime, time.Now(), agent.SpanStatusError, map[string]any{
			"agent.id": agentID, "run.id": runID, "error": runErr.Error(),
		})
		recorder.PrependRoot(root)
		if onRunError != nil {
			onRunError(runErr, runID)
		}
		return nil, runErr
	}
}

func (o *Orchestrator) resolveEffectiveModel(a agent.Agent, opts agent.RunOptions) (provider, modelName, effectiveModel string) {
	provider, modelName = resolveProvider(a, o.defaultProvider)
	effectiveModel = provider + "/" + modelName
	if o.router != nil && opts.AutoSelectModel {
		hints := cost.AnalyzeTask(opts.Input, len(a.Tools) > 0)
		if decision, ok := o.router.Route(hints); ok {
			effectiveModel = decision.Model
			if idx := indexByte(effectiveModel, '/'); idx >= 0 {
				provider, modelName = effectiveModel[:idx], effectiveModel[idx+1:]
			} else {
				modelName = effectiveModel
			}
		}
	}
	return provider, modelName, effectiveModel
}

func (o *Orchestrator) runLoop(runCtx context.Context, a agent.Agent, opts agent.RunOptions, p runLoopParams) (*agent.RunResult, error) {
	messages := p.messages
	var (
		totalInput, totalOutput int
		allToolCalls            []agent.ToolCall
		iteration               int
		maxIter                 = a.EffectiveMaxIterations()
	)

	for iteration < maxIter {
		select {
		case <-runCtx.Done():
			return p.fail(agent.KindLLMTimeout, fmt.Errorf("Run timed out after %dms", p.timeout.Milliseconds()))
		default:
		}
		iteration++

		req := &model.Request{
			RunID:       p.runID,
			Model:       p.modelName,
			Messages:    messages,
			Temperature: a.EffectiveTemperature(),
			Tools:       toolDefinitions(p.registry),
			MaxTokens:   a.MaxTokens,
			Stream:      opts.Stream,
			Cache:       a.CachePolicy,
		}

		callStart := time.Now()
		content, modelToolCalls, usage, finishReason, err := o.callModel(runCtx, p.backend, req, opts)
		if err != nil {
			p.recorder.Record("llm.chat", agent.SpanKindClient, "", callStart, time.Now(), agent.SpanStatusError, map[string]any{
				"llm.model": p.effectiveModel, "llm.iteration": iteration, "error": err.Error(),
			})
			return p.fail(agent.KindLLMUnavailable, err)
		}
		p.recorder.Record("llm.chat", agent.SpanKindClient, "", callStart, time.Now(), agent.SpanStatusOK, map[string]any{
			"llm.model": p.effectiveModel, "llm.iteration": iteration,
			"llm.input_tokens": usage.InputTokens, "llm.output_tokens": usage.OutputTokens,
			"llm.finish_reason": finishReason, "output": content,
		})
		totalInput += usage.InputTokens
		totalOutput += usage.OutputTokens

		if o.guardrails != nil {
			decision, err := o.guardrails.FilterOutput(runCtx, guardrail.OutputCheck{RunID: p.runID, AgentID: a.ID, Iteration: iteration, Content: content, Messages: messages})
			if err != nil {
				return p.fail(agent.KindInternalError, err)
			}
			if decision.Blocked {
				if decision.Revision != "" {
					content = decision.Revision
				} else {
					return p.fail(agent.KindPolicyOutputBlocked, fmt.Errorf("Output blocked: %s", decision.Reason))
				}
			}
		}

		assistantMsg := &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: content}}}
		messages = append(messages, assistantMsg)
		if o.memoryStore != nil && opts.SaveHistoryOrDefault() {
			o.msgBuilder.SaveEntry(runCtx, p.threadID, assistantMsg, opts.OnMemoryError)
		}

		if finishReason != string(streamreader.FinishReasonToolCalls) {
			break
		}

		calls := toAgentToolCalls(modelToolCalls)
		allToolCalls = append(allToolCalls, calls...)
		for _, c := range calls {
			if opts.OnToolCall != nil {
				opts.OnToolCall(c)
			}
		}

		results := o.dispatchTools(runCtx, p.registry, calls, p.runID, a.ID, opts.ParallelToolCalls, p.recorder)
		for _, res := range results {
			if opts.OnToolResult != nil {
				opts.OnToolResult(res)
			}
			toolMsg := toolResultMessage(res)
			messages = append(messages, toolMsg)
			if o.memoryStore != nil && opts.SaveHistoryOrDefault() {
				o.msgBuilder.SaveEntry(runCtx, p.threadID, toolMsg, opts.OnMemoryError)
			}
		}
	}

	finalOutput := lastAssistantText(messages)
	runCost := 0.0
	if pricing, ok := o.pricing[p.effectiveModel]; ok {
		runCost = (float64(totalInput)*pricing.InputPerMillion + float64(totalOutput)*pricing.OutputPerMillion) / 1_000_000
	}
	if runCost > 0 {
		o.costSummaryMu.Lock()
		o.costSummary[a.ID] += runCost
		o.costSummaryMu.Unlock()
	}

	root := p.recorder.Record("agent.run", agent.SpanKindInternal, "", p.startTime, time.Now(), agent.SpanStatusOK, map[string]any{
		"agent.id": a.ID, "run.id": p.runID, "model.used": p.effectiveModel, "iterations": iteration,
	})
	p.recorder.PrependRoot(root)

	res := &agent.RunResult{
		Output:    finalOutput,
		RunID:     p.runID,
		AgentID:   a.ID,
		ThreadID:  p.threadID,
		TurnID:    p.turnID,
		ModelUsed: p.effectiveModel,
		Usage: agent.Usage{
			InputTokens:  totalInput,
			OutputTokens: totalOutput,
			TotalTokens:  totalInput + totalOutput,
			Cost:         runCost,
			Duration:     time.Since(p.startTime),
		},
		ToolCalls: allToolCalls,
		Messages:  messages,
		Trace:     p.recorder.Trace(),
	}
	if opts.OnRunComplete != nil {
		opts.OnRunComplete(res)
	}
	return res, nil
}

func (o *Orchestrator) callModel(ctx context.Context, backend model.Client, req *model.Request, opts agent.RunOptions) (content string, calls []model.ToolCall, usage model.TokenUsage, finishReason string, err error) {
	if opts.Stream && opts.OnToken != nil {
		streamer, serr := backend.Stream(ctx, req)
		if serr != nil {
			return "", nil, model.TokenUsage{}, "", serr
		}
		defer streamer.Close()
		result, rerr := streamreader.Read(streamer, streamreader.Options{OnToken: opts.OnToken})
		if rerr != nil {
			return "", nil, model.TokenUsage{}, "", rerr
		}
		return result.Content, result.ToolCalls, result.Usage, string(result.FinishReason), nil
	}
	resp, cerr := backend.Complete(ctx, req)
	if cerr != nil {
		return "", nil, model.TokenUsage{}, "", cerr
	}
	return textFromMessages(resp.Content), resp.ToolCalls, resp.Usage, resp.StopReason, nil
}

func (o *Orchestrator) dispatchTools(ctx context.Context, registry *tools.Registry, calls []agent.ToolCall, runID, agentID string, parallel bool, recorder *spanrecorder.Recorder) []agent.ToolResult {
	results := make([]agent.ToolResult, len(calls))
	record := func(i int, call agent.ToolCall) {
		start := time.Now()
		res := o.exec.Execute(ctx, registry, call, runID, agentID)
		status := agent.SpanStatusOK
		if res.IsError() {
			status = agent.SpanStatusError
		}
		recorder.Record("tool."+string(call.Name), agent.SpanKindInternal, "", start, time.Now(), status, map[string]any{
			"tool.name": string(call.Name), "tool.call_id": call.ID, "tool.arguments": string(call.Arguments),
			"tool.success": !res.IsError(), "tool.error": res.Error,
		})
		results[i] = res
	}

	if !parallel {
		for i, call := range calls {
			record(i, call)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call agent.ToolCall) {
			defer wg.Done()
			record(i, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func textFromMessages(msgs []model.Message) string {
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tp, ok := p.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

func lastAssistantText(msgs []*model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.ConversationRoleAssistant {
			continue
		}
		for _, p := range msgs[i].Parts {
			if tp, ok := p.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

func toAgentToolCalls(calls []model.ToolCall) []agent.ToolCall {
	out := make([]agent.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = agent.ToolCall{ID: c.ID, Name: c.Name, Arguments: json.RawMessage(c.Payload)}
	}
	return out
}

func toolResultMessage(res agent.ToolResult) *model.Message {
	var text string
	if res.IsError() {
		text = res.Error
	} else if b, err := json.Marshal(res.Result); err == nil {
		text = string(b)
	}
	return &model.Message{
		Role:       model.ConversationRoleTool,
		ToolCallID: res.CallID,
		ToolName:   string(res.Name),
		Parts:      []model.Part{model.TextPart{Text: text}},
	}
}

func toolDefinitions(registry *tools.Registry) []*model.ToolDefinition {
	list := registry.List()
	out := make([]*model.ToolDefinition, 0, len(list))
	for _, t := range list {
		j, err := t.ToJSON()
		if err != nil {
			continue
		}
		out = append(out, &model.ToolDefinition{
			Name:        string(t.Name),
			Description: t.Description,
			InputSchema: j["parameters"],
		})
	}
	return out
}

