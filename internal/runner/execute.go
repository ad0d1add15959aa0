package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/invoke"
	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/workspace"
)

// runExecute materializes the slotted executable and the test case's
// input files into a scratch workspace, runs the program and captures
// standard output plus every file the run created.
func (r *Runner) runExecute(ctx context.Context, studentID, testcaseID string) error {
	putFailure := func(f *resultstore.Failure) error {
		slog.Info("execute failed",
			"student", studentID, "testcase", testcaseID, "kind", f.Kind, "message", f.Message)
		return r.results.PutExecute(resultstore.ExecuteResult{
			StudentID:  studentID,
			TestcaseID: testcaseID,
			Failure:    f,
		})
	}

	compile, err := r.results.GetCompile(studentID)
	if err != nil {
		return err
	}
	if compile == nil || !compile.Success() {
		return putFailure(fail(resultstore.FailurePrerequisite, "compile did not succeed"))
	}

	cfg, err := r.testcases.ExecuteConfig(testcaseID)
	if err != nil {
		return fmt.Errorf("failed to load execute config %s: %w", testcaseID, err)
	}

	if !r.slots.HasExecutable(studentID) {
		return putFailure(fail(resultstore.FailureExecutableMissing, "no executable in slot"))
	}
	exe, err := r.slots.GetExecutable(studentID)
	if err != nil {
		return err
	}

	ws, err := workspace.New(r.scratchRoot)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Remove() }()

	if err := ws.Put(executableFileName, exe, 0o755); err != nil {
		return err
	}
	stdinName := ""
	for id, content := range cfg.InputFiles {
		if err := ws.Put(id.WorkspaceName(), content, 0o644); err != nil {
			return err
		}
		if id == fileid.Stdin {
			stdinName = id.WorkspaceName()
		}
	}

	before, err := ws.Snapshot()
	if err != nil {
		return err
	}

	stdout, err := r.executor.Execute(ctx, ws.Dir(), executableFileName, stdinName, cfg.Timeout())
	var exitErr *invoke.ExitError
	switch {
	case errors.Is(err, invoke.ErrTimeout):
		return putFailure(fail(resultstore.FailureExecuteTimeout, "timed out after %s", cfg.Timeout()))
	case errors.As(err, &exitErr):
		return putFailure(fail(resultstore.FailureRuntimeError, "exited with code %d: %s", exitErr.Code, exitErr.Output))
	case err != nil:
		return fmt.Errorf("failed to run executable for %s on %s: %w", studentID, testcaseID, err)
	}

	outputs := map[fileid.ID][]byte{fileid.Stdout: []byte(stdout)}
	created, err := ws.CreatedSince(before)
	if err != nil {
		return err
	}
	for _, name := range created {
		data, err := ws.Get(name)
		if err != nil {
			return err
		}
		outputs[fileid.FromWorkspaceName(name)] = data
	}

	return r.results.PutExecute(resultstore.ExecuteResult{
		StudentID:   studentID,
		TestcaseID:  testcaseID,
		ConfigMtime: cfg.Mtime,
		OutputFiles: outputs,
	})
}
