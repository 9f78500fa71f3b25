// Solvergate: an MCP server for mathematical optimization.
//
// Exposes linear/integer programming, assignment, transportation,
// knapsack, routing, scheduling, portfolio and production-planning
// solvers as MCP tools, each wrapped by an admission-control layer that
// bounds concurrency, memory and solve time.
//
// Usage:
//
//	solvergate serve                 # stdio transport (MCP clients)
//	solvergate serve -transport=sse  # HTTP SSE transport
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	sgserver "github.com/solvergate/solvergate/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("solvergate v%s\n", sgserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	transport := fs.String("transport", "stdio", "transport: stdio or sse")
	addr := fs.String("addr", ":8080", "listen address (sse transport)")
	configPath := fs.String("config", "", "optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Logs go to stderr so they never interfere with MCP's stdio
	// transport on stdout.
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	s, cleanup, err := sgserver.New(*configPath, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	switch *transport {
	case "stdio":
		log.Info("starting MCP stdio server")
		return server.ServeStdio(s.MCP)
	case "sse":
		return runSSE(s, *addr, log)
	default:
		return fmt.Errorf("unknown transport %q (expected stdio or sse)", *transport)
	}
}

// runSSE serves MCP over HTTP SSE with health and metrics endpoints
// alongside, and shuts down gracefully on SIGINT/SIGTERM.
func runSSE(s *sgserver.Server, addr string, log *zap.Logger) error {
	sse := server.NewSSEServer(s.MCP)

	mux := http.NewServeMux()
	mux.Handle("/", sse)
	mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := s.Health.Report()
		w.Header().Set("Content-Type", "application/json")
		if report.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})

	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting MCP SSE server", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `solvergate v%s - MCP optimization server

Usage:
  solvergate serve [flags]   Start the MCP server
  solvergate version         Print the version

Serve flags:
  -transport stdio|sse   Transport (default stdio)
  -addr :8080            Listen address for sse transport
  -config path.yaml      Optional config file

Configuration (environment):
  SOLVERGATE_MAX_CONCURRENT_REQUESTS   Simultaneous solves (default 4)
  SOLVERGATE_MAX_MEMORY_MB             Memory budget (default: system RAM)
  SOLVERGATE_ACQUIRE_WAIT              Slot wait bound, e.g. 5s (0 = reject immediately)
  SOLVERGATE_MAX_REQUESTS_PER_SECOND   Admission rate limit (0 = off)
  SOLVERGATE_SNAPSHOT_TTL              Memory snapshot cache TTL (default 250ms)
  SOLVERGATE_JOURNAL_PATH              SQLite invocation journal (empty = off)

MCP client config:

  {
    "mcpServers": {
      "solvergate": {
        "command": "solvergate",
        "args": ["serve"]
      }
    }
  }
`, sgserver.Version)
}
