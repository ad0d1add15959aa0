package invoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
)

// DefaultCompileCommand builds a plain C executable. {src} and {exe}
// expand to the source and artifact file names inside the workspace.
const DefaultCompileCommand = "gcc -o {exe} {src}"

// CCompiler compiles one source file into an executable inside a
// workspace directory by running a configured command line.
type CCompiler struct {
	CommandTemplate string
	Timeout         time.Duration
}

func NewCCompiler(commandTemplate string, timeout time.Duration) *CCompiler {
	if commandTemplate == "" {
		commandTemplate = DefaultCompileCommand
	}
	return &CCompiler{CommandTemplate: commandTemplate, Timeout: timeout}
}

// Compile runs the compiler in dir and verifies the artifact exists.
// The returned string is the combined stdout and stderr of the
// compiler, also on failure.
func (c *CCompiler) Compile(ctx context.Context, dir, sourceName, exeName string) (string, error) {
	cmdLine := strings.ReplaceAll(c.CommandTemplate, "{src}", sourceName)
	cmdLine = strings.ReplaceAll(cmdLine, "{exe}", exeName)
	args, err := shlex.Split(cmdLine)
	if err != nil {
		return "", fmt.Errorf("invalid compile command %q: %w", cmdLine, err)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("empty compile command")
	}

	tctx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(tctx, args[0], args[1:]...)
	cmd.Dir = dir
	out, runErr := cmd.CombinedOutput()
	output := string(out)

	if tctx.Err() != nil {
		return output, fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return output, &ExitError{Code: exitErr.ExitCode(), Output: output}
		}
		return output, fmt.Errorf("failed to run compiler: %w", runErr)
	}

	if _, err := os.Stat(filepath.Join(dir, exeName)); err != nil {
		return output, ErrNoArtifact
	}
	return output, nil
}
