package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yasu-a/autoprogen/internal/invoke"
	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/workspace"
)

// runCompile copies the slotted source into a fresh scratch workspace,
// invokes the compiler there and stores the produced executable back
// into the student's slot.
func (r *Runner) runCompile(ctx context.Context, studentID string) error {
	putFailure := func(output string, f *resultstore.Failure) error {
		slog.Info("compile failed", "student", studentID, "kind", f.Kind, "message", f.Message)
		return r.results.PutCompile(resultstore.CompileResult{StudentID: studentID, Output: output, Failure: f})
	}

	build, err := r.results.GetBuild(studentID)
	if err != nil {
		return err
	}
	if build == nil || !build.Success() {
		return putFailure("", fail(resultstore.FailurePrerequisite, "build did not succeed"))
	}

	src, err := r.slots.GetSource(studentID)
	if err != nil {
		return err
	}

	ws, err := workspace.New(r.scratchRoot)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Remove() }()

	if err := ws.Put(sourceFileName, src, 0o644); err != nil {
		return err
	}

	output, err := r.compiler.Compile(ctx, ws.Dir(), sourceFileName, executableFileName)
	var exitErr *invoke.ExitError
	switch {
	case errors.Is(err, invoke.ErrTimeout):
		return putFailure(output, fail(resultstore.FailureCompileTimeout, "compiler timed out"))
	case errors.As(err, &exitErr):
		return putFailure(exitErr.Output, fail(resultstore.FailureCompile, "compiler exited with code %d", exitErr.Code))
	case errors.Is(err, invoke.ErrNoArtifact):
		return putFailure(output, fail(resultstore.FailureCompile, "compiler produced no executable"))
	case err != nil:
		return fmt.Errorf("failed to invoke compiler for %s: %w", studentID, err)
	}

	exe, err := ws.Get(executableFileName)
	if err != nil {
		return err
	}
	if err := r.slots.PutExecutable(studentID, exe); err != nil {
		return err
	}
	return r.results.PutCompile(resultstore.CompileResult{StudentID: studentID, Output: output})
}
