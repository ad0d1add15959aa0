package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/submission"
)

// runBuild locates the student's C source, decodes it to UTF-8 and
// writes it to the source slot. The recorded checksum snapshots the
// whole submission folder so any re-upload rolls the student back.
func (r *Runner) runBuild(_ context.Context, studentID string) error {
	putFailure := func(f *resultstore.Failure) error {
		slog.Info("build failed", "student", studentID, "kind", f.Kind, "message", f.Message)
		return r.results.PutBuild(resultstore.BuildResult{StudentID: studentID, Failure: f})
	}

	ok, err := r.submissions.Exists(studentID)
	if err != nil {
		return fmt.Errorf("failed to probe submission for %s: %w", studentID, err)
	}
	if !ok {
		return putFailure(fail(resultstore.FailureSubmissionMissing, "submission folder for %s not found", studentID))
	}

	raw, name, err := r.submissions.Source(studentID)
	if errors.Is(err, submission.ErrNoSource) {
		return putFailure(fail(resultstore.FailureSourceMissing, "no C source file in submission"))
	}
	if err != nil {
		return fmt.Errorf("failed to read source for %s: %w", studentID, err)
	}

	text, err := submission.DecodeSource(raw)
	if err != nil {
		return putFailure(fail(resultstore.FailureSourceDecode, "cannot decode %s: %v", name, err))
	}

	if err := r.slots.PutSource(studentID, []byte(text)); err != nil {
		return err
	}

	checksum, err := r.submissions.Checksum(studentID)
	if err != nil {
		return fmt.Errorf("failed to checksum submission for %s: %w", studentID, err)
	}
	return r.results.PutBuild(resultstore.BuildResult{StudentID: studentID, Checksum: checksum})
}
