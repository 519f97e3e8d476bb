package agent

import (
	"fmt"
	"regexp"
)

// Kind is the error taxonomy surfaced to orchestrator callers. It groups
// failures by subsystem rather than naming a Go type per failure, covering
// the whole run lifecycle from LLM calls through tool and memory failures.
type Kind string

const (
	// LLM errors.
	KindLLMUnavailable           Kind = "llm.unavailable"
	KindLLMRateLimited           Kind = "llm.rate_limited"
	KindLLMTimeout               Kind = "llm.timeout"
	KindLLMInvalidResponse       Kind = "llm.invalid_response"
	KindLLMContextLengthExceeded Kind = "llm.context_length_exceeded"
	KindLLMContentFiltered       Kind = "llm.content_filtered"

	// Sandbox errors.
	KindSandboxUnavailable     Kind = "sandbox.unavailable"
	KindSandboxTimeout         Kind = "sandbox.timeout"
	KindSandboxOOM             Kind = "sandbox.oom"
	KindSandboxExecutionFailed Kind = "sandbox.execution_failed"
	KindSandboxInvalidModule   Kind = "sandbox.invalid_module"

	// Tool errors.
	KindToolNotFound        Kind = "tool.not_found"
	KindToolInvalidArgs     Kind = "tool.invalid_args"
	KindToolExecutionFailed Kind = "tool.execution_failed"
	KindToolTimeout         Kind = "tool.timeout"

	// Memory errors.
	KindMemoryUnavailable Kind = "memory.unavailable"
	KindMemoryWriteFailed Kind = "memory.write_failed"
	KindMemoryReadFailed  Kind = "memory.read_failed"

	// Agent errors.
	KindAgentAlreadyRunning Kind = "agent.already_running"
	KindAgentMaxIterations  Kind = "agent.max_iterations"
	KindAgentBudgetExceeded Kind = "agent.budget_exceeded"

	// Policy errors.
	KindPolicyPromptInjectionDetected Kind = "policy.prompt_injection_detected"
	KindPolicyInputBlocked            Kind = "policy.input_blocked"
	KindPolicyOutputBlocked           Kind = "policy.output_blocked"
	KindPolicyToolBlocked             Kind = "policy.tool_blocked"

	// Generic errors.
	KindValidationError    Kind = "validation_error"
	KindConfigurationError Kind = "configuration_error"
	KindInternalError      Kind = "internal_error"
	KindCircuitOpen        Kind = "circuit_open"
)

// inherentlyTransient holds the Kinds that are retryable regardless of
// message content.
var inherentlyTransient = map[Kind]bool{
	KindLLMUnavailable:       true,
	KindLLMRateLimited:       true,
	KindLLMTimeout:           true,
	KindSandboxUnavailable:   true,
	KindSandboxTimeout:       true,
	KindMemoryUnavailable:    true,
	KindCircuitOpen:          true,
}

// retryableMessage matches diagnostic substrings that mark an error
// retryable even when its Kind is not inherently transient: timeout,
// connection refused/reset, rate limiting, 503, or 429.
var retryableMessage = regexp.MustCompile(`(?i)timeout|conn(?:ection)?[- ]refused|conn(?:ection)?[- ]reset|rate limit|\b503\b|\b429\b`)

// Error is the structured error type returned by orchestrator operations. It
// carries a Kind, a human-readable Message, optional structured Details, a
// Retryable flag, and an optional RetryAfter hint.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]any
	Retryable  bool
	RetryAfter string // duration string, e.g. "30s"; empty means no hint
	Cause      error
}

// NewError constructs an Error, computing Retryable from Kind and Message.
func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: inherentlyTransient[kind] || retryableMessage.MatchString(message),
	}
}

// Errorf is NewError with fmt.Sprintf-style formatting.
func Errorf(kind Kind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// Wrap constructs an Error with the given Kind wrapping cause.
func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return NewError(kind, string(kind))
	}
	e := NewError(kind, cause.Error())
	e.Cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// WithDetails attaches structured diagnostic details and returns e for
// chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRetryAfter sets a retry-after hint and returns e for chaining.
func (e *Error) WithRetryAfter(d string) *Error {
	e.RetryAfter = d
	return e
}
