package api_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasu-a/autoprogen/api"
	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/match"
	"github.com/yasu-a/autoprogen/internal/pattern"
	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

func newBuilder(t *testing.T) (*api.Builder, *resultstore.Store, *testcase.Store) {
	t.Helper()
	root := t.TempDir()
	results, err := resultstore.Open(filepath.Join(root, "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = results.Close() })
	testcases, err := testcase.NewStore(filepath.Join(root, "testcases"))
	require.NoError(t, err)
	return api.NewBuilder(results, testcases), results, testcases
}

func addTestcase(t *testing.T, tcs *testcase.Store, id string) {
	t.Helper()
	_, err := tcs.PutExecuteConfig(id, testcase.ExecuteConfig{})
	require.NoError(t, err)
}

func TestBuilder_PendingStudent(t *testing.T) {
	b, _, tcs := newBuilder(t)
	addTestcase(t, tcs, "t01")

	rep, err := b.Student("s01")
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, rep.Status)
	assert.Nil(t, rep.Build)
	require.Len(t, rep.Testcases, 1)
	assert.Equal(t, api.StatusPending, rep.Testcases[0].Status)
}

func TestBuilder_AcceptedStudent(t *testing.T) {
	b, results, tcs := newBuilder(t)
	addTestcase(t, tcs, "t01")

	require.NoError(t, results.PutBuild(resultstore.BuildResult{StudentID: "s01", Checksum: 1}))
	require.NoError(t, results.PutCompile(resultstore.CompileResult{StudentID: "s01", Output: "ok"}))
	require.NoError(t, results.PutExecute(resultstore.ExecuteResult{
		StudentID: "s01", TestcaseID: "t01", ConfigMtime: time.Now(),
		OutputFiles: map[fileid.ID][]byte{fileid.Stdout: []byte("sum = 3\n")},
	}))
	require.NoError(t, results.PutTest(resultstore.TestResult{
		StudentID: "s01", TestcaseID: "t01", ConfigMtime: time.Now(),
		Entries: []resultstore.TestEntry{{
			FileID: fileid.Stdout,
			Kind:   resultstore.EntryTested,
			Actual: []byte("sum = 3\n"),
			Match: &match.Result{Matched: []match.Span{
				{Pattern: pattern.NewText(0, true, "sum = 3", true, false), Begin: 0, End: 7},
			}},
		}},
	}))

	rep, err := b.Student("s01")
	require.NoError(t, err)
	assert.Equal(t, api.StatusAccepted, rep.Status)
	require.NotNil(t, rep.LastModified)
	require.Len(t, rep.Testcases, 1)
	require.Len(t, rep.Testcases[0].Files, 1)
	assert.True(t, rep.Testcases[0].Files[0].Accepted)
}

func TestBuilder_CompileFailureWins(t *testing.T) {
	b, results, tcs := newBuilder(t)
	addTestcase(t, tcs, "t01")

	require.NoError(t, results.PutBuild(resultstore.BuildResult{StudentID: "s01", Checksum: 1}))
	require.NoError(t, results.PutCompile(resultstore.CompileResult{
		StudentID: "s01",
		Output:    "main.c:1: error",
		Failure:   &resultstore.Failure{Kind: resultstore.FailureCompile, Message: "exit 1"},
	}))

	rep, err := b.Student("s01")
	require.NoError(t, err)
	assert.Equal(t, api.StatusFailed, rep.Status)
	require.NotNil(t, rep.Compile)
	assert.Equal(t, string(resultstore.FailureCompile), rep.Compile.Reason)
}

func TestBuilder_AllSortsByStudent(t *testing.T) {
	b, results, _ := newBuilder(t)
	require.NoError(t, results.PutBuild(resultstore.BuildResult{StudentID: "s02", Checksum: 1}))
	require.NoError(t, results.PutBuild(resultstore.BuildResult{StudentID: "s01", Checksum: 1}))

	reports, err := b.All([]string{"s02", "s01"})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "s01", reports[0].StudentID)
	assert.Equal(t, "s02", reports[1].StudentID)
}
