package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasu-a/autoprogen/internal/stage"
)

func TestPathsFor(t *testing.T) {
	paths := stage.PathsFor([]string{"t1", "t2"})
	require.Len(t, paths, 2)

	require.Len(t, paths[0], 4)
	assert.Equal(t, stage.Stage{Kind: stage.Build}, paths[0][0])
	assert.Equal(t, stage.Stage{Kind: stage.Compile}, paths[0][1])
	assert.Equal(t, stage.Stage{Kind: stage.Execute, TestcaseID: "t1"}, paths[0][2])
	assert.Equal(t, stage.Stage{Kind: stage.Test, TestcaseID: "t1"}, paths[0][3])
	assert.Equal(t, "t2", paths[1][2].TestcaseID)

	// Build and Compile are identical values on every path.
	assert.Equal(t, paths[0][0], paths[1][0])
	assert.Equal(t, paths[0][1], paths[1][1])
}

func TestPathsFor_NoTestcases(t *testing.T) {
	paths := stage.PathsFor(nil)
	require.Len(t, paths, 1)
	assert.Equal(t, stage.Path{{Kind: stage.Build}, {Kind: stage.Compile}}, paths[0])
}

func TestPathFrom(t *testing.T) {
	p := stage.PathsFor([]string{"t1"})[0]

	tail := p.From(stage.Stage{Kind: stage.Execute, TestcaseID: "t1"})
	require.Len(t, tail, 2)
	assert.Equal(t, stage.Execute, tail[0].Kind)
	assert.Equal(t, stage.Test, tail[1].Kind)

	assert.Nil(t, p.From(stage.Stage{Kind: stage.Execute, TestcaseID: "t9"}))
}
