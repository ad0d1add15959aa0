// Package pipeline advances students through the grading stages. The
// driver is a pure step function: each call either rolls back stale
// results, runs the first missing stage, or reports that the student
// is fully graded. Re-running a finished student is a no-op.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/rollback"
	"github.com/yasu-a/autoprogen/internal/runner"
	"github.com/yasu-a/autoprogen/internal/stage"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

type Driver struct {
	results     *resultstore.Store
	testcases   *testcase.Store
	submissions runner.SubmissionAccessor
	runner      *runner.Runner
}

func NewDriver(
	results *resultstore.Store,
	testcases *testcase.Store,
	submissions runner.SubmissionAccessor,
	r *runner.Runner,
) *Driver {
	return &Driver{
		results:     results,
		testcases:   testcases,
		submissions: submissions,
		runner:      r,
	}
}

// Advance performs one unit of work for the student: first any
// pending rollbacks, then the earliest stage without a record. It
// returns false when nothing was left to do.
func (d *Driver) Advance(ctx context.Context, studentID string) (bool, error) {
	ids, err := d.testcases.List()
	if err != nil {
		return false, err
	}
	paths := stage.PathsFor(ids)

	rolled, err := d.rollBackStale(studentID, paths)
	if err != nil {
		return false, err
	}
	if rolled {
		return true, nil
	}

	for _, path := range paths {
		for _, st := range path {
			present, err := d.hasRecord(studentID, st)
			if err != nil {
				return false, err
			}
			if present {
				continue
			}
			if err := d.runner.Run(ctx, studentID, st, path); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RunUntilDone steps the student until no work remains. stop is
// polled between stages so a termination request lands on a stage
// boundary, never mid-stage.
func (d *Driver) RunUntilDone(ctx context.Context, studentID string, stop func() bool) error {
	for {
		if stop != nil && stop() {
			slog.Debug("grading stopped", "student", studentID)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		did, err := d.Advance(ctx, studentID)
		if err != nil {
			return err
		}
		if !did {
			return nil
		}
	}
}

// rollBackStale compares every path's stored chain against the
// current submission and configs, and clears from the earliest stale
// stage onward. Reports whether anything was cleared.
func (d *Driver) rollBackStale(studentID string, paths []stage.Path) (bool, error) {
	build, err := d.results.GetBuild(studentID)
	if err != nil {
		return false, err
	}

	var checksum uint64
	if build != nil && build.Success() {
		exists, err := d.submissions.Exists(studentID)
		if err != nil {
			return false, err
		}
		if exists {
			checksum, err = d.submissions.Checksum(studentID)
			if err != nil {
				return false, err
			}
		}
		// A deleted submission leaves checksum zero, which the stored
		// success cannot match, so the chain rolls back from Build.
	}

	rolled := false
	for _, path := range paths {
		chain := rollback.Chain{Build: build}
		in := rollback.Inputs{SubmissionChecksum: checksum}

		tc := testcaseIDOf(path)
		if tc != "" {
			if chain.Execute, err = d.results.GetExecute(studentID, tc); err != nil {
				return false, err
			}
			if chain.Test, err = d.results.GetTest(studentID, tc); err != nil {
				return false, err
			}
			if cfg, err := d.testcases.ExecuteConfig(tc); err == nil {
				in.ExecuteConfigMtime = cfg.Mtime
			}
			if cfg, err := d.testcases.TestConfig(tc); err == nil {
				in.TestConfigMtime = cfg.Mtime
			}
			// An unreadable config keeps the zero stamp, which forces a
			// rollback of any stored success that used it.
		}

		st := rollback.Detect(tc, chain, in)
		if st == nil {
			continue
		}
		slog.Info("rolling back stale results", "student", studentID, "from", st.String())
		if err := d.results.Rollback(studentID, path, *st); err != nil {
			return false, err
		}
		rolled = true
		// Build and Compile are shared across paths, so the stale build
		// record stays in the loop: every remaining path detects it and
		// clears its own Execute/Test records too.
	}
	return rolled, nil
}

func (d *Driver) hasRecord(studentID string, st stage.Stage) (bool, error) {
	switch st.Kind {
	case stage.Build:
		r, err := d.results.GetBuild(studentID)
		return r != nil, err
	case stage.Compile:
		r, err := d.results.GetCompile(studentID)
		return r != nil, err
	case stage.Execute:
		r, err := d.results.GetExecute(studentID, st.TestcaseID)
		return r != nil, err
	default:
		r, err := d.results.GetTest(studentID, st.TestcaseID)
		return r != nil, err
	}
}

func testcaseIDOf(path stage.Path) string {
	for _, st := range path {
		if st.TestcaseID != "" {
			return st.TestcaseID
		}
	}
	return ""
}
