// Package config defines the resource budget that governs solver admission.
//
// The budget is loaded once at startup (environment variables with optional
// YAML file overrides) and is immutable afterwards. Every tool class the
// server exposes has an entry in the budget table; looking up a name that
// has no entry is a configuration error, not a retryable condition.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrUnknownTool is returned when a tool name has no budget entry.
// Callers treat it as a configuration error: fail fast, do not retry.
var ErrUnknownTool = errors.New("unknown tool")

// ToolBudget holds the per-tool-class admission parameters.
type ToolBudget struct {
	// Timeout is the solve deadline for one invocation.
	Timeout time.Duration
	// EstimatedMemoryMB is the static memory estimate used for the
	// pre-admission budget check. It is deliberately conservative,
	// not an exact accounting.
	EstimatedMemoryMB int
}

// ResourceBudget is the complete admission-control configuration.
type ResourceBudget struct {
	// MaxConcurrentRequests bounds simultaneous solver executions.
	MaxConcurrentRequests int
	// MaxMemoryMB is the process-wide memory budget. Zero means
	// "derive from total system RAM at startup".
	MaxMemoryMB int
	// AcquireWait bounds how long a request may wait for a concurrency
	// slot. Zero means immediate rejection when the gate is full.
	AcquireWait time.Duration
	// MaxRequestsPerSecond is an optional global admission rate limit.
	// Zero disables it.
	MaxRequestsPerSecond float64
	// SnapshotTTL is how long a memory snapshot may be reused before
	// the OS is queried again.
	SnapshotTTL time.Duration
	// JournalPath is the SQLite file for the invocation journal.
	// Empty disables journaling.
	JournalPath string

	// Tools maps tool name to its budget entry.
	Tools map[string]ToolBudget
}

// Tool returns the budget entry for the named tool.
func (b *ResourceBudget) Tool(name string) (ToolBudget, error) {
	tb, ok := b.Tools[name]
	if !ok {
		return ToolBudget{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tb, nil
}

// Default returns the built-in budget covering every registered tool class.
// The estimates reflect the relative appetite of each problem family:
// integer programming and routing branch hard, assignment and scheduling
// stay small.
func Default() *ResourceBudget {
	return &ResourceBudget{
		MaxConcurrentRequests: 4,
		MaxMemoryMB:           0,
		AcquireWait:           5 * time.Second,
		SnapshotTTL:           250 * time.Millisecond,
		Tools: map[string]ToolBudget{
			"solve_linear_program":         {Timeout: 30 * time.Second, EstimatedMemoryMB: 256},
			"solve_integer_program":        {Timeout: 60 * time.Second, EstimatedMemoryMB: 512},
			"solve_assignment_problem":     {Timeout: 30 * time.Second, EstimatedMemoryMB: 128},
			"solve_transportation_problem": {Timeout: 30 * time.Second, EstimatedMemoryMB: 256},
			"solve_knapsack_problem":       {Timeout: 30 * time.Second, EstimatedMemoryMB: 256},
			"solve_routing_problem":        {Timeout: 60 * time.Second, EstimatedMemoryMB: 512},
			"solve_job_scheduling":         {Timeout: 30 * time.Second, EstimatedMemoryMB: 128},
			"optimize_portfolio":           {Timeout: 30 * time.Second, EstimatedMemoryMB: 256},
			"optimize_production":          {Timeout: 30 * time.Second, EstimatedMemoryMB: 256},
		},
	}
}

// toolOverride is the on-disk shape of a per-tool budget override.
type toolOverride struct {
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	EstimatedMemoryMB int `mapstructure:"estimated_memory_mb"`
}

// Load builds the budget from defaults, the optional YAML file at path,
// and SOLVERGATE_* environment variables (highest precedence).
func Load(path string) (*ResourceBudget, error) {
	b := Default()

	v := viper.New()
	v.SetEnvPrefix("solvergate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_concurrent_requests", b.MaxConcurrentRequests)
	v.SetDefault("max_memory_mb", b.MaxMemoryMB)
	v.SetDefault("acquire_wait", b.AcquireWait)
	v.SetDefault("max_requests_per_second", b.MaxRequestsPerSecond)
	v.SetDefault("snapshot_ttl", b.SnapshotTTL)
	v.SetDefault("journal_path", b.JournalPath)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	b.MaxConcurrentRequests = v.GetInt("max_concurrent_requests")
	b.MaxMemoryMB = v.GetInt("max_memory_mb")
	b.AcquireWait = v.GetDuration("acquire_wait")
	b.MaxRequestsPerSecond = v.GetFloat64("max_requests_per_second")
	b.SnapshotTTL = v.GetDuration("snapshot_ttl")
	b.JournalPath = v.GetString("journal_path")

	if v.IsSet("tools") {
		overrides := map[string]toolOverride{}
		if err := v.UnmarshalKey("tools", &overrides); err != nil {
			return nil, fmt.Errorf("parsing tool budgets: %w", err)
		}
		for name, o := range overrides {
			tb, ok := b.Tools[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q in config file", ErrUnknownTool, name)
			}
			if o.TimeoutSeconds > 0 {
				tb.Timeout = time.Duration(o.TimeoutSeconds) * time.Second
			}
			if o.EstimatedMemoryMB > 0 {
				tb.EstimatedMemoryMB = o.EstimatedMemoryMB
			}
			b.Tools[name] = tb
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the budget invariants. MaxMemoryMB of zero is allowed
// here because the composition root resolves it from system RAM before
// the governor ever sees the budget.
func (b *ResourceBudget) Validate() error {
	if b.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max_concurrent_requests must be >= 1, got %d", b.MaxConcurrentRequests)
	}
	if b.MaxMemoryMB < 0 {
		return fmt.Errorf("max_memory_mb must be >= 0, got %d", b.MaxMemoryMB)
	}
	if b.AcquireWait < 0 {
		return fmt.Errorf("acquire_wait must be >= 0, got %s", b.AcquireWait)
	}
	if b.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("max_requests_per_second must be >= 0, got %f", b.MaxRequestsPerSecond)
	}
	if b.SnapshotTTL <= 0 {
		return fmt.Errorf("snapshot_ttl must be > 0, got %s", b.SnapshotTTL)
	}
	if len(b.Tools) == 0 {
		return errors.New("tool budget table is empty")
	}
	for name, tb := range b.Tools {
		if tb.Timeout <= 0 {
			return fmt.Errorf("tool %q: timeout must be > 0, got %s", name, tb.Timeout)
		}
		if tb.EstimatedMemoryMB <= 0 {
			return fmt.Errorf("tool %q: estimated_memory_mb must be > 0, got %d", name, tb.EstimatedMemoryMB)
		}
	}
	return nil
}
