package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichat/agent-gateway/internal/schema"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(slog.Default())
}

func TestRegisterAndGet(t *testing.T) {
	r := testRegistry(t)
	tool := newStubTool("alpha", "general")

	assert.True(t, r.Register(tool))

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())
	assert.Contains(t, r.Categories(), "general")
}

func TestRegisterDuplicateLastWins(t *testing.T) {
	r := testRegistry(t)
	first := newStubTool("alpha", "general")
	second := newStubTool("alpha", "ai")

	r.Register(first)
	r.Register(second)

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "ai", got.Category())
	assert.Len(t, r.All(), 1)

	// The category index must not keep a dangling reference to the
	// overwritten registration.
	assert.NotContains(t, r.Categories(), "general")
	assert.Contains(t, r.Categories(), "ai")
}

func TestUnregister(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))

	assert.True(t, r.Unregister("alpha"))
	_, ok := r.Get("alpha")
	assert.False(t, ok)

	assert.False(t, r.Unregister("alpha"), "second unregister is a no-op failure")
}

func TestUnregisterLastInCategoryRemovesCategory(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))
	r.Register(newStubTool("beta", "general"))

	r.Unregister("alpha")
	assert.Contains(t, r.Categories(), "general")

	r.Unregister("beta")
	assert.NotContains(t, r.Categories(), "general")
	assert.Empty(t, r.Categories())
}

func TestEnabledFiltering(t *testing.T) {
	r := testRegistry(t)
	enabled := newStubTool("alpha", "general")
	disabled := newStubTool("beta", "general")
	disabled.SetEnabled(false)
	r.Register(enabled)
	r.Register(disabled)

	assert.Len(t, r.All(), 2)
	assert.Len(t, r.Enabled(), 1)

	byCategory := r.ByCategory("general")
	require.Len(t, byCategory, 1)
	assert.Equal(t, "alpha", byCategory[0].Name())
}

func TestDefinitions(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))
	disabled := newStubTool("beta", "general")
	disabled.SetEnabled(false)
	r.Register(disabled)

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "alpha", defs[0].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := testRegistry(t)

	result := r.Execute(context.Background(), "ghost", map[string]any{}, nil)

	assert.Equal(t, schema.StatusFailed, result.Status)
	assert.Equal(t, "ghost", result.ToolName)
	assert.Contains(t, result.Error, "not found")
}

func TestExecuteDisabledTool(t *testing.T) {
	r := testRegistry(t)
	tool := newStubTool("alpha", "general")
	tool.SetEnabled(false)
	r.Register(tool)

	result := r.Execute(context.Background(), "alpha", map[string]any{}, nil)

	assert.Equal(t, schema.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "disabled")
	assert.False(t, tool.executed, "disabled tool must be rejected before dispatch")
}

func TestExecuteManyPreservesOrder(t *testing.T) {
	r := testRegistry(t)

	slow := newStubTool("slow", "general")
	slow.delay = 50 * time.Millisecond
	fast := newStubTool("fast", "general")
	failing := newStubTool("failing", "general")
	failing.err = fmt.Errorf("deliberate failure")
	r.Register(slow)
	r.Register(fast)
	r.Register(failing)

	requests := []ExecRequest{
		{ToolName: "slow", Parameters: map[string]any{}},
		{ToolName: "failing", Parameters: map[string]any{}},
		{ToolName: "ghost", Parameters: map[string]any{}},
		{ToolName: "fast", Parameters: map[string]any{}},
	}

	results := r.ExecuteMany(context.Background(), requests)

	require.Len(t, results, len(requests), "results must be index-aligned with requests")
	assert.Equal(t, "slow", results[0].ToolName)
	assert.Equal(t, schema.StatusCompleted, results[0].Status)
	assert.Equal(t, "failing", results[1].ToolName)
	assert.Equal(t, schema.StatusFailed, results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "ghost", results[2].ToolName)
	assert.Equal(t, schema.StatusFailed, results[2].Status)
	assert.Equal(t, "fast", results[3].ToolName)
	assert.Equal(t, schema.StatusCompleted, results[3].Status)
}

func TestExecuteManyIsolatesPanics(t *testing.T) {
	r := testRegistry(t)
	panicking := newStubTool("panicking", "general")
	panicking.panicMsg = "boom"
	healthy := newStubTool("healthy", "general")
	r.Register(panicking)
	r.Register(healthy)

	results := r.ExecuteMany(context.Background(), []ExecRequest{
		{ToolName: "panicking", Parameters: map[string]any{}},
		{ToolName: "healthy", Parameters: map[string]any{}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, schema.StatusFailed, results[0].Status)
	assert.Equal(t, schema.StatusCompleted, results[1].Status)
}

func TestEnableDisableByName(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))

	assert.True(t, r.Disable("alpha"))
	got, _ := r.Get("alpha")
	assert.False(t, got.Enabled())

	assert.True(t, r.Enable("alpha"))
	assert.True(t, got.Enabled())

	assert.False(t, r.Enable("ghost"))
	assert.False(t, r.Disable("ghost"))
}

func TestToggle(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))

	enabled, ok := r.Toggle("alpha")
	require.True(t, ok)
	assert.False(t, enabled)

	enabled, ok = r.Toggle("alpha")
	require.True(t, ok)
	assert.True(t, enabled)

	_, ok = r.Toggle("ghost")
	assert.False(t, ok)
}

func TestConcurrentToggleAndRead(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Disable("alpha")
			r.Enable("alpha")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Enabled()
			r.Definitions()
			r.Execute(context.Background(), "alpha", map[string]any{}, nil)
		}
	}()
	wg.Wait()

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.True(t, got.Enabled())
}

func TestSearch(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("text_generation", "ai"))
	r.Register(newStubTool("calculator", "math"))
	hidden := newStubTool("secret_text", "ai")
	hidden.SetEnabled(false)
	r.Register(hidden)

	results := r.Search("TEXT")
	require.Len(t, results, 1)
	assert.Equal(t, "text_generation", results[0].Name())

	byCategory := r.Search("math")
	require.Len(t, byCategory, 1)
	assert.Equal(t, "calculator", byCategory[0].Name())

	assert.Empty(t, r.Search("nonexistent"))
}

func TestStatus(t *testing.T) {
	r := testRegistry(t)
	r.Register(newStubTool("alpha", "general"))
	disabled := newStubTool("beta", "ai")
	disabled.SetEnabled(false)
	r.Register(disabled)

	status := r.Status()
	require.Len(t, status, 2)
	assert.True(t, status["alpha"].Enabled)
	assert.False(t, status["beta"].Enabled)
	assert.Equal(t, "ai", status["beta"].Category)
}
