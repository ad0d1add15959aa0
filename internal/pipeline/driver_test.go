package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/invoke"
	"github.com/yasu-a/autoprogen/internal/pattern"
	"github.com/yasu-a/autoprogen/internal/pipeline"
	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/runner"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

type fakeSubmissions struct {
	exists   atomic.Bool
	checksum atomic.Uint64
}

func (f *fakeSubmissions) Exists(string) (bool, error) { return f.exists.Load(), nil }

func (f *fakeSubmissions) Source(string) ([]byte, string, error) {
	return []byte("int main(void) { return 0; }\n"), "main.c", nil
}

func (f *fakeSubmissions) Checksum(string) (uint64, error) { return f.checksum.Load(), nil }

type countingCompiler struct {
	calls atomic.Int32
	err   error
}

func (c *countingCompiler) Compile(_ context.Context, dir, _, exeName string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "", os.WriteFile(filepath.Join(dir, exeName), []byte("binary"), 0o755)
}

type countingExecutor struct {
	calls atomic.Int32
}

func (e *countingExecutor) Execute(context.Context, string, string, string, time.Duration) (string, error) {
	e.calls.Add(1)
	return "sum = 3\n", nil
}

type fixture struct {
	root        string
	driver      *pipeline.Driver
	results     *resultstore.Store
	testcases   *testcase.Store
	submissions *fakeSubmissions
	compiler    *countingCompiler
	executor    *countingExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	results, err := resultstore.Open(filepath.Join(root, "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = results.Close() })

	testcases, err := testcase.NewStore(filepath.Join(root, "testcases"))
	require.NoError(t, err)

	slots, err := runner.NewSlots(filepath.Join(root, "dynamic"))
	require.NoError(t, err)

	f := &fixture{
		root:        root,
		results:     results,
		testcases:   testcases,
		submissions: &fakeSubmissions{},
		compiler:    &countingCompiler{},
		executor:    &countingExecutor{},
	}
	f.submissions.exists.Store(true)
	f.submissions.checksum.Store(42)

	r := runner.New(results, testcases, f.submissions, f.compiler, f.executor, slots,
		filepath.Join(root, "scratch"))
	f.driver = pipeline.NewDriver(results, testcases, f.submissions, r)
	return f
}

func runnerWithCompiler(t *testing.T, f *fixture, comp runner.Compiler) *runner.Runner {
	t.Helper()
	slots, err := runner.NewSlots(filepath.Join(f.root, "dynamic-gated"))
	require.NoError(t, err)
	return runner.New(f.results, f.testcases, f.submissions, comp, f.executor, slots,
		filepath.Join(f.root, "scratch"))
}

func (f *fixture) addTestcase(t *testing.T, id string) {
	t.Helper()
	_, err := f.testcases.PutExecuteConfig(id, testcase.ExecuteConfig{
		InputFiles: map[fileid.ID][]byte{fileid.Stdin: []byte("1 2\n")},
	})
	require.NoError(t, err)
	_, err = f.testcases.PutTestConfig(id, testcase.TestConfig{
		ExpectedOutputs: map[fileid.ID]pattern.List{
			fileid.Stdout: {pattern.NewText(0, true, "sum = 3", true, false)},
		},
	})
	require.NoError(t, err)
}

func (f *fixture) runUntilDone(t *testing.T, studentID string) {
	t.Helper()
	require.NoError(t, f.driver.RunUntilDone(context.Background(), studentID, nil))
}

func TestDriver_GradesEveryStage(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.addTestcase(t, "t02")

	f.runUntilDone(t, "s01")

	b, err := f.results.GetBuild("s01")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Success())

	for _, tc := range []string{"t01", "t02"} {
		r, err := f.results.GetTest("s01", tc)
		require.NoError(t, err)
		require.NotNil(t, r, tc)
		assert.True(t, r.Accepted(), tc)
	}
	assert.Equal(t, int32(1), f.compiler.calls.Load())
	assert.Equal(t, int32(2), f.executor.calls.Load())
}

func TestDriver_RerunIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")

	f.runUntilDone(t, "s01")
	f.runUntilDone(t, "s01")

	assert.Equal(t, int32(1), f.compiler.calls.Load())
	assert.Equal(t, int32(1), f.executor.calls.Load())

	did, err := f.driver.Advance(context.Background(), "s01")
	require.NoError(t, err)
	assert.False(t, did)
}

func TestDriver_NoTestcasesStillCompiles(t *testing.T) {
	f := newFixture(t)
	f.runUntilDone(t, "s01")

	c, err := f.results.GetCompile("s01")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.Success())
	assert.Equal(t, int32(0), f.executor.calls.Load())
}

func TestDriver_ResubmissionRollsBackFromBuild(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.runUntilDone(t, "s01")

	// A re-uploaded submission changes the folder checksum.
	f.submissions.checksum.Store(43)
	f.runUntilDone(t, "s01")

	assert.Equal(t, int32(2), f.compiler.calls.Load())
	assert.Equal(t, int32(2), f.executor.calls.Load())
	b, err := f.results.GetBuild("s01")
	require.NoError(t, err)
	assert.Equal(t, uint64(43), b.Checksum)
}

func TestDriver_ResubmissionClearsEveryPathInOneStep(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.addTestcase(t, "t02")
	f.runUntilDone(t, "s01")

	f.submissions.checksum.Store(43)
	did, err := f.driver.Advance(context.Background(), "s01")
	require.NoError(t, err)
	assert.True(t, did)

	// Build and Compile are shared: one rollback step leaves no stored
	// success anywhere, on any path.
	b, err := f.results.GetBuild("s01")
	require.NoError(t, err)
	assert.Nil(t, b)
	c, err := f.results.GetCompile("s01")
	require.NoError(t, err)
	assert.Nil(t, c)
	for _, tc := range []string{"t01", "t02"} {
		e, err := f.results.GetExecute("s01", tc)
		require.NoError(t, err)
		assert.Nil(t, e, tc)
		r, err := f.results.GetTest("s01", tc)
		require.NoError(t, err)
		assert.Nil(t, r, tc)
	}
}

func TestDriver_ExecuteConfigEditRollsBackExecuteOnly(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.addTestcase(t, "t02")
	f.runUntilDone(t, "s01")

	// Editing one test case's run inputs re-stamps its config.
	_, err := f.testcases.PutExecuteConfig("t01", testcase.ExecuteConfig{
		InputFiles: map[fileid.ID][]byte{fileid.Stdin: []byte("2 1\n")},
	})
	require.NoError(t, err)

	f.runUntilDone(t, "s01")

	// Build and Compile stand; only t01 re-executes.
	assert.Equal(t, int32(1), f.compiler.calls.Load())
	assert.Equal(t, int32(3), f.executor.calls.Load())

	r, err := f.results.GetTest("s01", "t01")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Accepted())
}

func TestDriver_TestConfigEditRescoresWithoutRerun(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.runUntilDone(t, "s01")

	_, err := f.testcases.PutTestConfig("t01", testcase.TestConfig{
		ExpectedOutputs: map[fileid.ID]pattern.List{
			fileid.Stdout: {pattern.NewText(0, true, "product = 2", true, false)},
		},
	})
	require.NoError(t, err)

	f.runUntilDone(t, "s01")

	// The stored run is reused; only the Test stage redoes its work.
	assert.Equal(t, int32(1), f.executor.calls.Load())
	r, err := f.results.GetTest("s01", "t01")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, r.Accepted())
}

func TestDriver_FailureRecordsAreSticky(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.compiler.err = &invoke.ExitError{Code: 1, Output: "syntax error"}

	f.runUntilDone(t, "s01")
	f.runUntilDone(t, "s01")

	// The failed compile is recorded once and never retried by rollback.
	assert.Equal(t, int32(1), f.compiler.calls.Load())
	assert.Equal(t, int32(0), f.executor.calls.Load())

	r, err := f.results.GetTest("s01", "t01")
	require.NoError(t, err)
	require.NotNil(t, r.Failure)
	assert.Equal(t, resultstore.FailurePrerequisite, r.Failure.Kind)
}

func TestDriver_ClearThenRegrade(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	f.compiler.err = &invoke.ExitError{Code: 1, Output: "syntax error"}
	f.runUntilDone(t, "s01")

	// The instructor clears the student after the fix; grading restarts
	// from scratch.
	f.compiler.err = nil
	require.NoError(t, f.results.Clear("s01"))
	f.runUntilDone(t, "s01")

	r, err := f.results.GetTest("s01", "t01")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Accepted())
}

func TestPool_WaitDrainsSubmittedStudents(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")

	pool := pipeline.NewPool(f.driver, 2)
	assert.True(t, pool.Submit("s01"))
	assert.True(t, pool.Submit("s02"))
	pool.Wait()

	for _, id := range []string{"s01", "s02"} {
		r, err := f.results.GetTest(id, "t01")
		require.NoError(t, err)
		require.NotNil(t, r, id)
	}
	assert.False(t, pool.Submit("s03"), "drained pool must reject work")
}

// gatedCompiler blocks the first compile until released, so a test
// can stop students while one of them is mid-stage.
type gatedCompiler struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedCompiler() *gatedCompiler {
	return &gatedCompiler{started: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedCompiler) Compile(_ context.Context, dir, _, exeName string) (string, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return "", os.WriteFile(filepath.Join(dir, exeName), []byte("binary"), 0o755)
}

func TestPool_StopEndsAtStageBoundary(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	comp := newGatedCompiler()
	r := runnerWithCompiler(t, f, comp)
	driver := pipeline.NewDriver(f.results, f.testcases, f.submissions, r)

	pool := pipeline.NewPool(driver, 1)
	require.True(t, pool.Submit("s01"))
	<-comp.started
	require.True(t, pool.Submit("s02"))

	pool.Stop("s01")
	pool.Stop("s02")
	close(comp.release)
	pool.Wait()

	// s01 finished its in-flight Compile and stopped at the boundary.
	c, err := f.results.GetCompile("s01")
	require.NoError(t, err)
	require.NotNil(t, c)
	e, err := f.results.GetExecute("s01", "t01")
	require.NoError(t, err)
	assert.Nil(t, e)

	// s02 never started; it has no records at all.
	b, err := f.results.GetBuild("s02")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestPool_TerminateAbandonsQueuedStudents(t *testing.T) {
	f := newFixture(t)
	f.addTestcase(t, "t01")
	comp := newGatedCompiler()
	r := runnerWithCompiler(t, f, comp)
	driver := pipeline.NewDriver(f.results, f.testcases, f.submissions, r)

	pool := pipeline.NewPool(driver, 1)
	require.True(t, pool.Submit("s01"))
	<-comp.started
	require.True(t, pool.Submit("s02"))

	// Terminate flags both pending tasks before it blocks; the gate
	// opens well after that.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(comp.release)
	}()
	pool.Terminate()

	e, err := f.results.GetExecute("s01", "t01")
	require.NoError(t, err)
	assert.Nil(t, e, "stopped student must not run past the stage boundary")
	b, err := f.results.GetBuild("s02")
	require.NoError(t, err)
	assert.Nil(t, b, "queued student must not start")
	assert.False(t, pool.Submit("s03"), "terminated pool must reject work")
}
