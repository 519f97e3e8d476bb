// Package tools defines the tool contract the orchestrator dispatches
// against: a name, a description, a parameter schema, and an execute
// function. Tools are registered by name in a Registry and validated
// against their declared schema before execute ever runs.
package tools

import (
	"context"
	"encoding/json"
)

// Name is the strong type for a tool identifier. Tool names are unique
// within a Registry and case-sensitive.
type Name string

// SideEffect tags a category of external effect a tool may have. Tags are
// advisory metadata consumed by guardrails and policy layers; they do not
// change dispatch behavior by themselves.
type SideEffect string

const (
	// SideEffectFilesystem marks a tool that reads or writes local files.
	SideEffectFilesystem SideEffect = "filesystem"
	// SideEffectNetwork marks a tool that performs network I/O.
	SideEffectNetwork SideEffect = "network"
	// SideEffectDatabase marks a tool that reads or writes a database.
	SideEffectDatabase SideEffect = "database"
	// SideEffectProcess marks a tool that spawns or controls processes.
	SideEffectProcess SideEffect = "process"
)

// Context carries run-scoped identity and cancellation into a tool's
// Execute call. Tools must honor ctx.Done() for cooperative cancellation.
type Context struct {
	AgentID string
	RunID   string
	Context context.Context
}

// ValidationError reports why a candidate argument object failed a Schema's
// SafeParse. Message is always human-readable; Issues is optional structured
// detail a caller can render without re-parsing Message.
type ValidationError struct {
	Message string
	Issues  []FieldIssue
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Message }

// FieldIssue describes a single schema violation for one field.
type FieldIssue struct {
	Field      string
	Constraint string
}

// Schema validates candidate argument objects for a tool and exposes a
// JSON-Schema-compatible projection for backends that need to advertise the
// tool's input shape.
type Schema interface {
	// SafeParse validates value (typically a decoded JSON object) against
	// the schema. On success it returns the (possibly defaulted/coerced)
	// data; on failure ok is false and err explains why.
	SafeParse(value any) (data any, ok bool, err error)

	// JSONSchema returns the schema rendered as a JSON-Schema-compatible
	// value, suitable for advertising to a model backend.
	JSONSchema() map[string]any
}

// SandboxKind distinguishes the two sandbox dispatch flavors a Tool may
// declare.
type SandboxKind string

const (
	// SandboxKindCommand runs a shell command descriptor built from the
	// tool's validated arguments.
	SandboxKindCommand SandboxKind = "command"
	// SandboxKindModule feeds the tool's JSON-serialized arguments to a
	// module's standard input and parses its standard output.
	SandboxKindModule SandboxKind = "module"
)

// Sandbox describes how a tool's execution should be routed to an isolated
// executor instead of running natively in-process.
type Sandbox struct {
	Kind SandboxKind
	// Module is the module identifier to invoke when Kind is
	// SandboxKindModule. Ignored for SandboxKindCommand.
	Module string
}

// ApprovalFunc is an optional per-tool predicate consulted by guardrails
// before a tool call is dispatched. Returning false blocks the call.
type ApprovalFunc func(ctx context.Context, arguments any) (bool, string)

// ExecuteFunc is the pure-by-contract tool body. It is only ever invoked
// with arguments the tool's Parameters schema has already accepted.
type ExecuteFunc func(ctx Context, arguments any) (any, error)

// Tool is a named callable the model may invoke through the backend's
// function-calling channel.
type Tool struct {
	Name        Name
	Description string
	Parameters  Schema
	Execute     ExecuteFunc

	// Sandbox routes execution through an external sandbox executor instead
	// of calling Execute in-process. Nil means native in-process execution.
	Sandbox *Sandbox

	// SideEffects documents the categories of external effect this tool may
	// have. Nil/empty means the tool is believed to be side-effect free.
	SideEffects []SideEffect

	// Timeout bounds a single invocation of this tool. Zero means no
	// tool-specific timeout (the run's overall timeout still applies).
	Timeout int64 // nanoseconds; time.Duration alias avoided to keep the struct import-light

	// Approval, if set, is consulted by the executor's guardrail step before
	// dispatch.
	Approval ApprovalFunc
}

// HasSideEffect reports whether the tool declares the given side-effect tag.
func (t Tool) HasSideEffect(s SideEffect) bool {
	for _, tag := range t.SideEffects {
		if tag == s {
			return true
		}
	}
	return false
}

// ToJSON renders the tool definition the way a backend expects to see it:
// name, description, and a JSON-Schema object payload.
func (t Tool) ToJSON() (map[string]any, error) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	if t.Parameters != nil {
		schema = t.Parameters.JSONSchema()
	}
	return map[string]any{
		"name":        string(t.Name),
		"description": t.Description,
		"parameters":  schema,
	}, nil
}

// MarshalSchema is a small helper for Schema implementations that keep their
// JSON Schema as a pre-rendered document; it round-trips through
// encoding/json so callers can store either a map or raw bytes.
func MarshalSchema(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
