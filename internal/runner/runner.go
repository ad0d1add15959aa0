// Package runner implements the four pipeline stages. Each runner
// reads the result store, performs its work through collaborators and
// writes exactly one success or failure record; failures never
// propagate past the runner boundary.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/stage"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

// Compiler turns a source file in a workspace directory into an
// executable there, returning the compiler's combined output.
type Compiler interface {
	Compile(ctx context.Context, dir, sourceName, exeName string) (string, error)
}

// Executor runs a workspace executable with a wall-clock timeout,
// optionally redirecting a workspace file to standard input, and
// returns captured standard output.
type Executor interface {
	Execute(ctx context.Context, dir, exeName, stdinName string, timeout time.Duration) (string, error)
}

// SubmissionAccessor yields a student's submission: raw source bytes,
// a deterministic folder checksum and an existence flag.
type SubmissionAccessor interface {
	Exists(studentID string) (bool, error)
	Source(studentID string) (raw []byte, name string, err error)
	Checksum(studentID string) (uint64, error)
}

// Names of the dynamic slot files and their scratch copies.
const (
	sourceFileName     = "main.c"
	executableFileName = "main"
)

type Runner struct {
	results     *resultstore.Store
	testcases   *testcase.Store
	submissions SubmissionAccessor
	compiler    Compiler
	executor    Executor
	slots       *Slots
	scratchRoot string
}

func New(
	results *resultstore.Store,
	testcases *testcase.Store,
	submissions SubmissionAccessor,
	compiler Compiler,
	executor Executor,
	slots *Slots,
	scratchRoot string,
) *Runner {
	return &Runner{
		results:     results,
		testcases:   testcases,
		submissions: submissions,
		compiler:    compiler,
		executor:    executor,
		slots:       slots,
		scratchRoot: scratchRoot,
	}
}

// Run executes one stage for one student. On entry the stage's own
// record and everything downstream on the path is removed, so a
// recorded success always implies valid upstream records. The
// returned error covers store and infrastructure problems only; stage
// failures are written as records.
func (r *Runner) Run(ctx context.Context, studentID string, st stage.Stage, path stage.Path) error {
	if err := r.results.Rollback(studentID, path, st); err != nil {
		return fmt.Errorf("failed to clear stage records: %w", err)
	}

	slog.Debug("running stage", "student", studentID, "stage", st.String())
	start := time.Now()

	var err error
	switch st.Kind {
	case stage.Build:
		err = r.runBuild(ctx, studentID)
	case stage.Compile:
		err = r.runCompile(ctx, studentID)
	case stage.Execute:
		err = r.runExecute(ctx, studentID, st.TestcaseID)
	case stage.Test:
		err = r.runTest(ctx, studentID, st.TestcaseID)
	default:
		err = fmt.Errorf("unknown stage kind %v", st.Kind)
	}
	if err != nil {
		return err
	}

	slog.Debug("stage finished", "student", studentID, "stage", st.String(), "elapsed", time.Since(start))
	return nil
}

func fail(kind resultstore.FailureKind, format string, args ...any) *resultstore.Failure {
	return &resultstore.Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
