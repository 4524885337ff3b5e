// Package runner verifies synthesized artifacts by compiling and running
// them, and persists accepted artifacts to their final location.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pilot/internal/config"
	"pilot/internal/logging"
	"pilot/internal/types"
)

// Runner executes an artifact and reports pass/fail. A returned error
// means the runner infrastructure itself broke, not that the test failed;
// test failures come back as an unsuccessful RunResult.
type Runner interface {
	Run(ctx context.Context, artifact types.TestArtifact) (types.RunResult, error)
}

// ExecRunner runs artifacts through an external command in a scratch
// directory, one fresh directory per run.
type ExecRunner struct {
	cfg config.RunnerConfig
}

// NewExecRunner builds a runner from configuration.
func NewExecRunner(cfg config.RunnerConfig) (*ExecRunner, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("runner command not configured")
	}
	return &ExecRunner{cfg: cfg}, nil
}

// Run writes the artifact into a fresh scratch directory and executes the
// configured command there. The exit status decides pass/fail; command
// output becomes the failure diagnostics.
func (r *ExecRunner) Run(ctx context.Context, artifact types.TestArtifact) (types.RunResult, error) {
	timer := logging.StartTimer(logging.CategoryRunner, "verify artifact")
	defer timer.Stop()

	dir, err := r.scratchDir()
	if err != nil {
		return types.RunResult{}, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, r.cfg.FileName)
	if err := os.WriteFile(path, []byte(artifact.Source), 0o644); err != nil {
		return types.RunResult{}, fmt.Errorf("write artifact: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.TimeoutDuration())
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], r.cfg.Command[1:]...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.Runner("running %s in %s", strings.Join(r.cfg.Command, " "), dir)
	err = cmd.Run()

	if err == nil {
		return types.RunResult{Success: true, Message: "test passed"}, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return types.RunResult{}, fmt.Errorf("runner timed out after %v", r.cfg.TimeoutDuration())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logging.RunnerDebug("test failed with exit code %d", exitErr.ExitCode())
		return types.RunResult{
			Success:    false,
			Message:    fmt.Sprintf("test exited with code %d", exitErr.ExitCode()),
			StackTrace: out.String(),
		}, nil
	}

	// Command could not start at all.
	return types.RunResult{}, fmt.Errorf("run %s: %w", r.cfg.Command[0], err)
}

func (r *ExecRunner) scratchDir() (string, error) {
	base := r.cfg.ScratchDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "pilot-run-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

// Persister writes accepted artifacts to their final destination.
type Persister interface {
	Persist(title string, artifact types.TestArtifact) (string, error)
}

// FilePersister writes artifacts under a directory, one file per case.
type FilePersister struct {
	dir string
}

// NewFilePersister builds a persister writing to dir.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{dir: dir}
}

// Persist writes the artifact as <dir>/<slug>_test.go and returns the
// path.
func (p *FilePersister) Persist(title string, artifact types.TestArtifact) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(p.dir, slug(title)+"_test.go")
	if err := os.WriteFile(path, []byte(artifact.Source), 0o644); err != nil {
		return "", fmt.Errorf("persist artifact: %w", err)
	}
	logging.Runner("persisted %s", path)
	return path, nil
}

// slug derives a filesystem-safe name from a test-case title.
func slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/':
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "generated"
	}
	return s
}
