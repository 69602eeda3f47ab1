package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/schema"
)

// ExecRequest names one tool execution in a batch.
type ExecRequest struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// StatusInfo summarizes one registered tool for the status endpoints.
type StatusInfo struct {
	Enabled     bool   `json:"enabled"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Registry owns the set of registered tools, indexed by name and by
// category. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	categories map[string][]string
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		categories: make(map[string][]string),
		logger:     logger,
	}
}

// Register inserts a tool. A name collision overwrites the previous
// registration with a warning. Returns false only for a nil tool.
func (r *Registry) Register(t Tool) bool {
	if t == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[t.Name()]; ok {
		r.logger.Warn("Tool already registered, overwriting", "tool", t.Name())
		r.removeFromCategory(existing.Category(), existing.Name())
	}

	r.tools[t.Name()] = t

	names := r.categories[t.Category()]
	for _, n := range names {
		if n == t.Name() {
			return true
		}
	}
	r.categories[t.Category()] = append(names, t.Name())

	r.logger.Info("Tool registered", "tool", t.Name(), "category", t.Category())
	return true
}

// Unregister removes a tool from both indices. Empty categories are
// pruned. Returns false if the name is unknown.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return false
	}

	delete(r.tools, name)
	r.removeFromCategory(t.Category(), name)

	r.logger.Info("Tool unregistered", "tool", name)
	return true
}

// removeFromCategory must be called with the lock held.
func (r *Registry) removeFromCategory(category, name string) {
	names := r.categories[category]
	for i, n := range names {
		if n == name {
			names = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(names) == 0 {
		delete(r.categories, category)
	} else {
		r.categories[category] = names
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns a snapshot of all registered tools.
func (r *Registry) All() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}
	return out
}

// Enabled returns a snapshot of enabled tools.
func (r *Registry) Enabled() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Tool)
	for name, t := range r.tools {
		if t.Enabled() {
			out[name] = t
		}
	}
	return out
}

// ByCategory returns the enabled tools in a category.
func (r *Registry) ByCategory(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Tool
	for _, name := range r.categories[category] {
		if t, ok := r.tools[name]; ok && t.Enabled() {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns all category names.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	return out
}

// Definitions returns definitions for all enabled tools. A tool whose
// definition cannot be produced is skipped, not fatal to the batch.
func (r *Registry) Definitions() []schema.ToolDefinition {
	defs := []schema.ToolDefinition{}
	for name, t := range r.Enabled() {
		def, err := t.Definition()
		if err != nil {
			r.logger.Error("Failed to get tool definition", "tool", name, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// Execute resolves and runs one tool. Unknown or disabled tools produce
// a failed result; no error escapes.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, progress ProgressFunc) schema.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return schema.ToolResult{
			ToolName: name,
			Status:   schema.StatusFailed,
			Error:    fmt.Sprintf("Tool '%s' not found", name),
		}
	}

	if !t.Enabled() {
		return schema.ToolResult{
			ToolName: name,
			Status:   schema.StatusFailed,
			Error:    fmt.Sprintf("Tool '%s' is disabled", name),
		}
	}

	result := SafeExecute(ctx, t, params, progress)
	metrics.ToolExecutions.WithLabelValues(name, string(result.Status)).Inc()
	return result
}

// ExecuteMany fans out the requests concurrently. Each task's failure
// is isolated; the returned slice is index-aligned with requests
// regardless of completion order.
func (r *Registry) ExecuteMany(ctx context.Context, requests []ExecRequest) []schema.ToolResult {
	results := make([]schema.ToolResult, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req ExecRequest) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = schema.ToolResult{
						ToolName: req.ToolName,
						Status:   schema.StatusFailed,
						Error:    fmt.Sprintf("Tool execution exception: %v", rec),
					}
				}
			}()
			results[i] = r.Execute(ctx, req.ToolName, req.Parameters, nil)
		}(i, req)
	}
	wg.Wait()

	return results
}

// Enable enables a tool by name.
func (r *Registry) Enable(name string) bool {
	t, ok := r.Get(name)
	if !ok {
		return false
	}
	t.SetEnabled(true)
	return true
}

// Disable disables a tool by name.
func (r *Registry) Disable(name string) bool {
	t, ok := r.Get(name)
	if !ok {
		return false
	}
	t.SetEnabled(false)
	return true
}

// Toggle flips a tool's enabled state under the write lock and returns
// the new state. The second return is false when the name is unknown.
func (r *Registry) Toggle(name string) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return false, false
	}
	enabled := !t.Enabled()
	t.SetEnabled(enabled)
	return enabled, true
}

// Status returns status information for all tools.
func (r *Registry) Status() map[string]StatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]StatusInfo, len(r.tools))
	for name, t := range r.tools {
		out[name] = StatusInfo{
			Enabled:     t.Enabled(),
			Category:    t.Category(),
			Description: t.Description(),
		}
	}
	return out
}

// Search matches the query case-insensitively against name, description,
// and category of enabled tools.
func (r *Registry) Search(query string) []Tool {
	q := strings.ToLower(query)

	var out []Tool
	for _, t := range r.Enabled() {
		if strings.Contains(strings.ToLower(t.Name()), q) ||
			strings.Contains(strings.ToLower(t.Description()), q) ||
			strings.Contains(strings.ToLower(t.Category()), q) {
			out = append(out, t)
		}
	}
	return out
}
