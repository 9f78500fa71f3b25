// Package server wires all solvergate components and creates the MCP
// server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the governor and tools that depend on them.
// No admission or solver logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/solvergate/solvergate/internal/config"
	"github.com/solvergate/solvergate/internal/governor"
	"github.com/solvergate/solvergate/internal/health"
	"github.com/solvergate/solvergate/internal/journal"
	"github.com/solvergate/solvergate/internal/metrics"
	"github.com/solvergate/solvergate/internal/resource"
	"github.com/solvergate/solvergate/internal/solver"
	"github.com/solvergate/solvergate/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// fallbackMemoryLimitMB is used when no budget is configured and total
// system RAM cannot be determined.
const fallbackMemoryLimitMB = 4096

// Server bundles the MCP server with the pieces the transport layer
// exposes over HTTP in SSE mode.
type Server struct {
	MCP     *server.MCPServer
	Health  *health.Reporter
	Metrics *prometheus.Registry
}

// New loads configuration and assembles the server. This is the single
// place where all dependencies are resolved.
//
// The returned cleanup function closes the invocation journal and must
// be called on shutdown (typically via defer). It is always non-nil and
// safe to call even if journal init failed.
func New(configPath string, log *zap.Logger) (*Server, func(), error) {
	budget, err := config.Load(configPath)
	if err != nil {
		return nil, noop, fmt.Errorf("loading config: %w", err)
	}

	// Resolve the memory budget before anything reads it: the governor
	// and health reporter both treat it as fixed.
	if budget.MaxMemoryMB == 0 {
		if total := resource.TotalSystemMemoryMB(); total > 0 {
			budget.MaxMemoryMB = total
		} else {
			budget.MaxMemoryMB = fallbackMemoryLimitMB
		}
		log.Info("memory budget derived", zap.Int("max_memory_mb", budget.MaxMemoryMB))
	}

	// --- Shared resource state ---

	gate := resource.NewGate(budget.MaxConcurrentRequests, budget.AcquireWait)
	provider := resource.NewProvider(budget.MaxMemoryMB, budget.SnapshotTTL, gate.Active)
	reporter := health.NewReporter(provider, gate)

	// --- Governor over the solver registry ---

	registry := solver.Standard()
	gov := governor.New(budget, provider, gate, registry, log)

	promReg := prometheus.NewRegistry()
	gov.AddRecorder(metrics.New(promReg, provider, gate))

	// The journal is an independent subsystem: if it fails to
	// initialize, solving continues without it. We log a warning and
	// skip the recorder; the server is still fully functional.
	cleanup := noop
	if budget.JournalPath != "" {
		j, err := journal.Open(budget.JournalPath, log)
		if err != nil {
			log.Warn("invocation journal disabled", zap.Error(err))
		} else {
			gov.AddRecorder(j)
			cleanup = func() {
				if err := j.Close(); err != nil {
					log.Warn("journal close", zap.Error(err))
				}
			}
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"solvergate",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register governed solver tools ---

	descriptions := tools.SolverDescriptions()
	for _, name := range registry.Names() {
		desc, ok := descriptions[name]
		if !ok {
			return nil, noop, fmt.Errorf("solver %q has no tool description", name)
		}
		st := tools.NewSolveTool(name, desc, gov)
		s.AddTool(st.Definition(), st.Handle)
	}

	// --- Register read-only tools ---

	healthTool := tools.NewHealthTool(reporter)
	s.AddTool(healthTool.Definition(), healthTool.Handle)

	infoTool := tools.NewInfoTool(Version, budget, registry.Names())
	s.AddTool(infoTool.Definition(), infoTool.Handle)

	validateTool := tools.NewValidateTool(solver.Validators())
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	return &Server{MCP: s, Health: reporter, Metrics: promReg}, cleanup, nil
}

// noop is the default cleanup when the journal is disabled.
func noop() {}

func serverInstructions() string {
	return `solvergate exposes mathematical optimization solvers as MCP tools.

Workflow:
1. Call get_server_info to see the available solvers and their limits.
2. Optionally call validate_optimization_input to check a problem
   definition before submitting it.
3. Call the solve_* / optimize_* tool for your problem class with the
   definition under the "problem" argument.

Every solve runs under admission control: it may be rejected when the
server is saturated (error kinds "memory_exceeded",
"concurrency_limit_exceeded", "rate_limited"); these are safe to retry
later. "timed_out" means the solve exceeded its deadline; simplify the
problem or split it. "solver_error" means the problem itself is
infeasible, unbounded, or malformed, so retrying unchanged will not help.

Call health_check at any time to see current load.`
}
