package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solvergate/solvergate/internal/health"
)

func TestNew_AssemblesServer(t *testing.T) {
	s, cleanup, err := New("", zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, s.MCP)
	require.NotNil(t, s.Metrics)

	rep := s.Health.Report()
	assert.Equal(t, health.StatusOK, rep.Status)
	assert.Equal(t, 4, rep.MaxConcurrentRequests)
	assert.Positive(t, rep.MemoryLimitMB)
}

func TestNew_JournalFailureIsNonFatal(t *testing.T) {
	// A journal path whose parent cannot be created must not stop the
	// server from coming up.
	t.Setenv("SOLVERGATE_JOURNAL_PATH", filepath.Join("/proc/does-not-exist", "journal.db"))

	s, cleanup, err := New("", zap.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, s.MCP)
}

func TestNew_BadConfigFails(t *testing.T) {
	t.Setenv("SOLVERGATE_MAX_CONCURRENT_REQUESTS", "-1")

	_, cleanup, err := New("", zap.NewNop())
	require.Error(t, err)
	cleanup()
}
