package api

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

// Builder assembles reports from the result store. It never runs any
// stage; absent records simply show as pending.
type Builder struct {
	results   *resultstore.Store
	testcases *testcase.Store
}

func NewBuilder(results *resultstore.Store, testcases *testcase.Store) *Builder {
	return &Builder{results: results, testcases: testcases}
}

// Student builds the report for one student.
func (b *Builder) Student(studentID string) (StudentReport, error) {
	rep := StudentReport{StudentID: studentID, Status: StatusPending}

	if t, ok, err := b.results.LastModified(studentID); err != nil {
		return rep, err
	} else if ok {
		rep.LastModified = &t
	}

	build, err := b.results.GetBuild(studentID)
	if err != nil {
		return rep, err
	}
	rep.Build = buildStage(build)

	compile, err := b.results.GetCompile(studentID)
	if err != nil {
		return rep, err
	}
	rep.Compile = compileStage(compile)

	ids, err := b.testcases.List()
	if err != nil {
		return rep, err
	}
	for _, tc := range ids {
		tcRep, err := b.testcaseReport(studentID, tc)
		if err != nil {
			return rep, err
		}
		rep.Testcases = append(rep.Testcases, tcRep)
	}

	rep.Status = overallStatus(rep)
	return rep, nil
}

// All builds reports for every requested student concurrently; the
// store handles parallel readers.
func (b *Builder) All(studentIDs []string) ([]StudentReport, error) {
	reports := make([]StudentReport, len(studentIDs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(8)
	for i, id := range studentIDs {
		i, id := i, id
		g.Go(func() error {
			rep, err := b.Student(id)
			if err != nil {
				return err
			}
			mu.Lock()
			reports[i] = rep
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].StudentID < reports[j].StudentID })
	return reports, nil
}

func (b *Builder) testcaseReport(studentID, testcaseID string) (TestcaseReport, error) {
	rep := TestcaseReport{TestcaseID: testcaseID, Status: StatusPending}

	exec, err := b.results.GetExecute(studentID, testcaseID)
	if err != nil {
		return rep, err
	}
	if exec != nil && !exec.Success() {
		rep.Status = StatusFailed
		rep.Reason = string(exec.Failure.Kind)
		rep.Message = exec.Failure.Message
		return rep, nil
	}

	test, err := b.results.GetTest(studentID, testcaseID)
	if err != nil {
		return rep, err
	}
	if test == nil {
		return rep, nil
	}
	if !test.Success() {
		rep.Status = StatusFailed
		rep.Reason = string(test.Failure.Kind)
		rep.Message = test.Failure.Message
		return rep, nil
	}

	if test.Accepted() {
		rep.Status = StatusAccepted
	} else {
		rep.Status = StatusRejected
	}
	for _, e := range test.Entries {
		rep.Files = append(rep.Files, TestFileReport{
			FileID:   string(e.FileID),
			Kind:     string(e.Kind),
			Accepted: e.Accepted(),
			Actual:   string(e.Actual),
		})
	}
	return rep, nil
}

func buildStage(r *resultstore.BuildResult) *StageReport {
	if r == nil {
		return nil
	}
	if r.Success() {
		return &StageReport{Status: StatusAccepted}
	}
	return &StageReport{Status: StatusFailed, Reason: string(r.Failure.Kind), Message: r.Failure.Message}
}

func compileStage(r *resultstore.CompileResult) *StageReport {
	if r == nil {
		return nil
	}
	rep := &StageReport{Status: StatusAccepted, Output: r.Output}
	if !r.Success() {
		rep.Status = StatusFailed
		rep.Reason = string(r.Failure.Kind)
		rep.Message = r.Failure.Message
	}
	return rep
}

// overallStatus folds the stages: any failure wins, then any rejected
// test case, then pending while anything is missing.
func overallStatus(rep StudentReport) Status {
	if rep.Build == nil || rep.Compile == nil {
		if stageFailed(rep.Build) || stageFailed(rep.Compile) {
			return StatusFailed
		}
		return StatusPending
	}
	if stageFailed(rep.Build) || stageFailed(rep.Compile) {
		return StatusFailed
	}

	status := StatusAccepted
	for _, tc := range rep.Testcases {
		switch tc.Status {
		case StatusFailed:
			return StatusFailed
		case StatusRejected:
			status = StatusRejected
		case StatusPending:
			if status == StatusAccepted {
				status = StatusPending
			}
		}
	}
	return status
}

func stageFailed(r *StageReport) bool {
	return r != nil && r.Status == StatusFailed
}
