// Package tools defines the tool contract, the safe-execution wrapper,
// and the registry that dispatches tool executions.
package tools

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agentichat/agent-gateway/internal/schema"
)

// ProgressFunc receives fire-and-forget progress notifications. It has
// no return value; a nil ProgressFunc is always safe.
type ProgressFunc func(message string, progress float64)

// Tool is the capability contract every tool implements. Execute may
// fail with any error; SafeExecute converts it into a failed result.
// Definition and ValidateParameters are pure and must agree with each
// other.
type Tool interface {
	Name() string
	Description() string
	Category() string
	Enabled() bool
	SetEnabled(enabled bool)
	Definition() (schema.ToolDefinition, error)
	ValidateParameters(params map[string]any) bool
	Execute(ctx context.Context, params map[string]any) (map[string]any, error)
}

// Base carries the identity and enabled toggle shared by all tools.
// Embed it and implement the remaining Tool methods. The enabled flag
// is flipped from the management endpoints while pipeline goroutines
// read it, so access goes through sync/atomic.
type Base struct {
	name        string
	description string
	category    string
	enabled     int32
}

// NewBase creates tool identity state. Tools start enabled.
func NewBase(name, description, category string) Base {
	if category == "" {
		category = "general"
	}
	return Base{
		name:        name,
		description: description,
		category:    category,
		enabled:     1,
	}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Description() string { return b.description }
func (b *Base) Category() string    { return b.category }

func (b *Base) Enabled() bool {
	return atomic.LoadInt32(&b.enabled) == 1
}

// SetEnabled toggles the tool. Idempotent and safe for concurrent use.
func (b *Base) SetEnabled(enabled bool) {
	var v int32
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&b.enabled, v)
}

// SafeExecute runs a tool with validation, timing, and error isolation.
// Invalid parameters fail before Execute is invoked. Any error or panic
// from Execute becomes a failed result; nothing escapes. The execution
// time on the result is always stamped here.
func SafeExecute(ctx context.Context, t Tool, params map[string]any, progress ProgressFunc) (result schema.ToolResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			notify(progress, fmt.Sprintf("%s failed: %v", t.Name(), r), 0.0)
			result = schema.ToolResult{
				ToolName:      t.Name(),
				Status:        schema.StatusFailed,
				Error:         fmt.Sprintf("Tool execution failed: %v", r),
				ExecutionTime: time.Since(start).Seconds(),
			}
		}
	}()

	if !t.ValidateParameters(params) {
		return schema.ToolResult{
			ToolName:      t.Name(),
			Status:        schema.StatusFailed,
			Error:         "Invalid parameters provided",
			ExecutionTime: time.Since(start).Seconds(),
		}
	}

	notify(progress, fmt.Sprintf("Starting %s...", t.Name()), 0.0)

	output, err := t.Execute(ctx, params)
	if err != nil {
		notify(progress, fmt.Sprintf("%s failed: %s", t.Name(), err.Error()), 0.0)
		return schema.ToolResult{
			ToolName:      t.Name(),
			Status:        schema.StatusFailed,
			Error:         fmt.Sprintf("Tool execution failed: %s", err.Error()),
			ExecutionTime: time.Since(start).Seconds(),
		}
	}

	notify(progress, fmt.Sprintf("%s completed successfully", t.Name()), 1.0)

	return schema.ToolResult{
		ToolName:      t.Name(),
		Status:        schema.StatusCompleted,
		Result:        output,
		ExecutionTime: time.Since(start).Seconds(),
	}
}

func notify(progress ProgressFunc, message string, fraction float64) {
	if progress == nil {
		return
	}
	// Best effort only. A panicking callback must not fail the execution.
	defer func() { recover() }()
	progress(message, fraction)
}
