package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/internal/config"
	"pilot/internal/types"
)

func shRunner(t *testing.T, script string) *ExecRunner {
	t.Helper()
	r, err := NewExecRunner(config.RunnerConfig{
		Command:    []string{"sh", "-c", script},
		FileName:   "generated_test.go",
		ScratchDir: t.TempDir(),
		Timeout:    "10s",
	})
	require.NoError(t, err)
	return r
}

func TestExecRunnerPass(t *testing.T) {
	r := shRunner(t, "exit 0")
	result, err := r.Run(context.Background(), types.TestArtifact{Source: "package generated"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExecRunnerFailCapturesOutput(t *testing.T) {
	r := shRunner(t, "echo assertion failed at step 2; exit 1")
	result, err := r.Run(context.Background(), types.TestArtifact{Source: "package generated"})
	require.NoError(t, err, "a failing test is a result, not a runner error")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "exited with code 1")
	assert.Contains(t, result.StackTrace, "assertion failed at step 2")
}

func TestExecRunnerWritesArtifact(t *testing.T) {
	r := shRunner(t, "cat generated_test.go")
	result, err := r.Run(context.Background(), types.TestArtifact{Source: "package generated // marker"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExecRunnerTimeout(t *testing.T) {
	r, err := NewExecRunner(config.RunnerConfig{
		Command:    []string{"sh", "-c", "sleep 30"},
		FileName:   "generated_test.go",
		ScratchDir: t.TempDir(),
		Timeout:    "100ms",
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), types.TestArtifact{Source: "package generated"})
	assert.ErrorContains(t, err, "timed out")
}

func TestExecRunnerMissingCommand(t *testing.T) {
	_, err := NewExecRunner(config.RunnerConfig{})
	assert.ErrorContains(t, err, "command not configured")
}

func TestExecRunnerUnrunnableCommand(t *testing.T) {
	r, err := NewExecRunner(config.RunnerConfig{
		Command:    []string{"/nonexistent/binary"},
		FileName:   "generated_test.go",
		ScratchDir: t.TempDir(),
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), types.TestArtifact{Source: "package generated"})
	assert.Error(t, err, "an unstartable command is runner infrastructure failure")
}

func TestFilePersister(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := NewFilePersister(dir)

	path, err := p.Persist("Login Works!", types.TestArtifact{Source: "package generated"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "login_works_test.go"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package generated", string(data))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Login Works", "login_works"},
		{"user can check-out", "user_can_check_out"},
		{"???", "generated"},
		{"  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slug(tt.in), tt.in)
	}
}
