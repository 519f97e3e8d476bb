// Package local is a reference sandbox.Sandbox implementation built on
// os/exec. It provides no real isolation (no namespaces, no cgroups, no
// filesystem jail); it exists so the Tool Executor's sandbox dispatch branch
// is exercised end to end by tests and the example CLI; it makes no
// isolation guarantee of its own.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sovereignrun/agentcore/sandbox"
)

// Sandbox is a local, unisolated command/module executor.
type Sandbox struct {
	mu        sync.Mutex
	available bool
}

// New constructs a Sandbox. It is unavailable until Initialize succeeds.
func New() *Sandbox {
	return &Sandbox{}
}

// Initialize marks the sandbox available. There is no external resource to
// provision for a local os/exec sandbox.
func (s *Sandbox) Initialize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = true
	return nil
}

// Shutdown marks the sandbox unavailable.
func (s *Sandbox) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = false
	return nil
}

// IsAvailable reports whether Initialize has run and Shutdown has not.
func (s *Sandbox) IsAvailable(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Execute dispatches a command- or module-style request.
func (s *Sandbox) Execute(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	switch req.Kind {
	case sandbox.KindCommand:
		return s.executeCommand(ctx, req)
	case sandbox.KindModule:
		return s.executeModule(ctx, req)
	default:
		return sandbox.Result{}, fmt.Errorf("sandbox/local: unknown request kind %q", req.Kind)
	}
}

func (s *Sandbox) executeCommand(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", req.Command)
	if req.Cwd != "" {
		cmd.Dir = req.Cwd
	}
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := sandbox.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
		Command:  req.Command,
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil && !result.TimedOut {
		return result, fmt.Errorf("sandbox/local: command failed: %w", err)
	}
	return result, nil
}

func (s *Sandbox) executeModule(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	cmd := exec.CommandContext(ctx, req.Module)
	cmd.Stdin = bytes.NewReader(req.Stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := sandbox.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
		Command:  req.Module,
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		return result, fmt.Errorf("sandbox/local: module failed: %w", err)
	}

	var parsed any
	if json.Unmarshal(stdout.Bytes(), &parsed) == nil {
		result.ParsedJSON = parsed
	}
	return result, nil
}
