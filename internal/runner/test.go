package runner

import (
	"context"
	"log/slog"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/match"
	"github.com/yasu-a/autoprogen/internal/resultstore"
)

// runTest scores the stored Execute outputs against the test config.
// Every file id on either side gets an entry: matched, absent or
// unexpected. Only an internal matching error fails the stage itself.
func (r *Runner) runTest(_ context.Context, studentID, testcaseID string) error {
	putFailure := func(f *resultstore.Failure) error {
		slog.Info("test failed",
			"student", studentID, "testcase", testcaseID, "kind", f.Kind, "message", f.Message)
		return r.results.PutTest(resultstore.TestResult{
			StudentID:  studentID,
			TestcaseID: testcaseID,
			Failure:    f,
		})
	}

	exec, err := r.results.GetExecute(studentID, testcaseID)
	if err != nil {
		return err
	}
	if exec == nil || !exec.Success() {
		return putFailure(fail(resultstore.FailurePrerequisite, "execute did not succeed"))
	}

	cfg, err := r.testcases.TestConfig(testcaseID)
	if err != nil {
		return putFailure(fail(resultstore.FailureTestInternal, "cannot load test config: %v", err))
	}

	ids := mapset.NewThreadUnsafeSet[fileid.ID]()
	for id := range cfg.ExpectedOutputs {
		ids.Add(id)
	}
	for id := range exec.OutputFiles {
		ids.Add(id)
	}
	sorted := ids.ToSlice()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var entries []resultstore.TestEntry
	for _, id := range sorted {
		expected, isExpected := cfg.ExpectedOutputs[id]
		actual, isActual := exec.OutputFiles[id]

		switch {
		case isExpected && isActual:
			res, err := match.Match(string(actual), expected, match.Options{IgnoreCase: cfg.IgnoreCase})
			if err != nil {
				return putFailure(fail(resultstore.FailureTestInternal,
					"matching %s failed: %v", id, err))
			}
			entries = append(entries, resultstore.TestEntry{
				FileID:   id,
				Kind:     resultstore.EntryTested,
				Expected: expected,
				Actual:   actual,
				Match:    &res,
			})
		case isExpected:
			entries = append(entries, resultstore.TestEntry{
				FileID:   id,
				Kind:     resultstore.EntryAbsent,
				Expected: expected,
			})
		default:
			entries = append(entries, resultstore.TestEntry{
				FileID: id,
				Kind:   resultstore.EntryUnexpected,
				Actual: actual,
			})
		}
	}

	result := resultstore.TestResult{
		StudentID:   studentID,
		TestcaseID:  testcaseID,
		ConfigMtime: cfg.Mtime,
		Entries:     entries,
	}
	if err := r.results.PutTest(result); err != nil {
		return err
	}
	if !result.Accepted() {
		slog.Debug("test rejected", "student", studentID, "testcase", testcaseID)
	}
	return nil
}
