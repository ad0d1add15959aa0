package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalExecutor runs a student executable directly on the host. The
// only sandboxing is the wall-clock timeout; submissions are trusted
// to the same degree the instructor's own shell is.
type LocalExecutor struct{}

// Execute runs dir/exeName with the given timeout. When stdinName is
// non-empty the named workspace file is redirected to the child's
// standard input. Captured standard output is returned as text.
func (e *LocalExecutor) Execute(ctx context.Context, dir, exeName, stdinName string, timeout time.Duration) (string, error) {
	tctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(tctx, "./"+exeName)
	cmd.Dir = dir

	if stdinName != "" {
		f, err := os.Open(filepath.Join(dir, stdinName))
		if err != nil {
			return "", fmt.Errorf("failed to open stdin file: %w", err)
		}
		defer func() { _ = f.Close() }()
		cmd.Stdin = f
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if tctx.Err() != nil {
		return stdout.String(), fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return stdout.String(), &ExitError{Code: exitErr.ExitCode(), Output: stderr.String()}
		}
		return stdout.String(), fmt.Errorf("failed to run executable: %w", runErr)
	}
	return stdout.String(), nil
}
