package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tool parameter limits, enforced before a candidate call ever reaches
// schema validation or Execute.
const (
	// MaxNameLength is the maximum length of a tool name.
	MaxNameLength = 256

	// MaxArgumentsSize is the maximum size, in bytes, of a tool's serialized
	// arguments payload.
	MaxArgumentsSize = 10 << 20
)

// Registry is a thread-safe collection of tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[Name]Tool
}

// NewRegistry creates an empty Registry ready for tool registration.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[Name]Tool)}
}

// Register adds a tool to the registry. If a tool with the same name is
// already registered, it is replaced. Register returns an error if the name
// is empty, too long, or the tool has neither an Execute function nor a
// Sandbox descriptor.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tools: registry: tool name must not be empty")
	}
	if len(t.Name) > MaxNameLength {
		return fmt.Errorf("tools: registry: tool name %q exceeds %d characters", t.Name, MaxNameLength)
	}
	if t.Execute == nil && t.Sandbox == nil {
		return fmt.Errorf("tools: registry: tool %q has neither Execute nor Sandbox set", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	return nil
}

// Unregister removes a tool from the registry by name. It is a no-op if the
// tool was not registered.
func (r *Registry) Unregister(name Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and reports whether it was found.
func (r *Registry) Get(name Name) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name, for deterministic
// ordering in prompts and trace output.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter returns the subset of registered tools whose names match at least
// one allow pattern (see MatchPattern) and no deny pattern, sorted by name.
// A nil or empty allow list means "all tools allowed" before deny is applied.
func (r *Registry) Filter(allow, deny []string) []Tool {
	all := r.List()
	if len(allow) == 0 && len(deny) == 0 {
		return all
	}
	out := make([]Tool, 0, len(all))
	for _, t := range all {
		if len(allow) > 0 && !matchesAny(allow, string(t.Name)) {
			continue
		}
		if matchesAny(deny, string(t.Name)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchPattern(p, name) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether name satisfies pattern. A pattern ending in
// ".*" matches any name sharing its prefix; any other pattern must match
// exactly.
func MatchPattern(pattern, name string) bool {
	if pattern == "" || name == "" {
		return false
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == name
}
