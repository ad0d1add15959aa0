package testcase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/pattern"
	"github.com/yasu-a/autoprogen/internal/testcase"
)

func newStore(t *testing.T) *testcase.Store {
	t.Helper()
	s, err := testcase.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStore_ExecuteConfigRoundTrip(t *testing.T) {
	s := newStore(t)

	in := testcase.ExecuteConfig{
		TimeoutSec: 2.5,
		InputFiles: map[fileid.ID][]byte{
			fileid.Stdin: []byte("3 4\n"),
			"data.txt":   []byte("line1\nline2\n"),
		},
	}
	stored, err := s.PutExecuteConfig("t1", in)
	require.NoError(t, err)
	assert.False(t, stored.Mtime.IsZero())

	got, err := s.ExecuteConfig("t1")
	require.NoError(t, err)
	assert.True(t, stored.Mtime.Equal(got.Mtime))
	assert.Equal(t, in.TimeoutSec, got.TimeoutSec)
	assert.Equal(t, in.InputFiles, got.InputFiles)
	assert.Equal(t, 2500*time.Millisecond, got.Timeout())
}

func TestStore_TestConfigRoundTrip(t *testing.T) {
	s := newStore(t)

	in := testcase.TestConfig{
		IgnoreCase: true,
		ExpectedOutputs: map[fileid.ID]pattern.List{
			fileid.Stdout: {
				pattern.NewText(0, true, "Hello World", true, false),
				pattern.NewText(1, false, "ERROR", false, false),
			},
		},
	}
	stored, err := s.PutTestConfig("t1", in)
	require.NoError(t, err)

	got, err := s.TestConfig("t1")
	require.NoError(t, err)
	assert.True(t, stored.Mtime.Equal(got.Mtime))
	assert.True(t, got.IgnoreCase)
	assert.Equal(t, in.ExpectedOutputs, got.ExpectedOutputs)
}

func TestStore_WriteBumpsMtime(t *testing.T) {
	s := newStore(t)

	first, err := s.PutExecuteConfig("t1", testcase.ExecuteConfig{})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.PutExecuteConfig("t1", testcase.ExecuteConfig{})
	require.NoError(t, err)
	assert.True(t, second.Mtime.After(first.Mtime))
}

func TestStore_List(t *testing.T) {
	s := newStore(t)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.PutExecuteConfig("t2", testcase.ExecuteConfig{})
	require.NoError(t, err)
	_, err = s.PutExecuteConfig("t1", testcase.ExecuteConfig{})
	require.NoError(t, err)

	ids, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestStore_DefaultTimeout(t *testing.T) {
	cfg := testcase.ExecuteConfig{}
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestStore_RejectsInvalidPatternList(t *testing.T) {
	s := newStore(t)

	_, err := s.PutTestConfig("t1", testcase.TestConfig{
		ExpectedOutputs: map[fileid.ID]pattern.List{
			fileid.Stdout: {pattern.NewText(3, true, "x", false, false)},
		},
	})
	assert.Error(t, err)
}
