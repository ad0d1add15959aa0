package pattern_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasu-a/autoprogen/internal/pattern"
)

func TestFragment_TextEscapesMetaCharacters(t *testing.T) {
	p := pattern.NewText(0, true, "a+b (c)", false, false)
	assert.Equal(t, `a\+b \(c\)`, p.Fragment())
}

func TestFragment_TextCollapseSpace(t *testing.T) {
	p := pattern.NewText(0, true, "Hello   World", true, false)
	assert.Equal(t, `Hello\s+World`, p.Fragment())

	// leading/trailing whitespace collapses too
	p = pattern.NewText(0, true, " a b ", true, false)
	assert.Equal(t, `\s+a\s+b\s+`, p.Fragment())
}

func TestFragment_TextWordBoundary(t *testing.T) {
	p := pattern.NewText(0, true, "sum", false, true)
	assert.Equal(t, `\bsum\b`, p.Fragment())
}

func TestFragment_SpaceAndNewline(t *testing.T) {
	assert.Equal(t, `\s+`, pattern.NewSpace(0, true).Fragment())
	assert.Equal(t, "\\n", pattern.NewNewline(0, true).Fragment())
}

func TestNewRegex_RejectsInvalidExpression(t *testing.T) {
	_, err := pattern.NewRegex(0, true, "a[")
	assert.Error(t, err)

	p, err := pattern.NewRegex(0, true, "[0-9]+")
	require.NoError(t, err)
	assert.Equal(t, "[0-9]+", p.Fragment())
}

func TestListValidate_RequiresConsecutiveIndices(t *testing.T) {
	ok := pattern.List{
		pattern.NewText(0, true, "a", false, false),
		pattern.NewText(1, false, "b", false, false),
	}
	assert.NoError(t, ok.Validate())

	bad := pattern.List{
		pattern.NewText(0, true, "a", false, false),
		pattern.NewText(2, true, "b", false, false),
	}
	assert.Error(t, bad.Validate())
}

func TestForbiddenRuns(t *testing.T) {
	// expected, forbidden, forbidden, expected, forbidden
	l := pattern.List{
		pattern.NewText(0, true, "a", false, false),
		pattern.NewText(1, false, "x", false, false),
		pattern.NewText(2, false, "y", false, false),
		pattern.NewText(3, true, "b", false, false),
		pattern.NewText(4, false, "z", false, false),
	}
	runs := l.ForbiddenRuns()
	require.Len(t, runs, 2)

	assert.Equal(t, 1, runs[0].PrecedingExpected)
	require.Len(t, runs[0].Patterns, 2)
	assert.Equal(t, 1, runs[0].Patterns[0].Index)
	assert.Equal(t, 2, runs[0].Patterns[1].Index)

	assert.Equal(t, 2, runs[1].PrecedingExpected)
	require.Len(t, runs[1].Patterns, 1)
	assert.Equal(t, 4, runs[1].Patterns[0].Index)

	assert.Len(t, l.ExpectedSeq(), 2)
}

func TestForbiddenRuns_LeadingRun(t *testing.T) {
	l := pattern.List{
		pattern.NewText(0, false, "x", false, false),
		pattern.NewText(1, true, "a", false, false),
	}
	runs := l.ForbiddenRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].PrecedingExpected)
}

func TestListJSON_RoundTrip(t *testing.T) {
	rx, err := pattern.NewRegex(2, true, `[0-9]{3}`)
	require.NoError(t, err)
	l := pattern.List{
		pattern.NewText(0, true, "Hello  World", true, true),
		pattern.NewText(1, false, "ERROR", false, false),
		rx,
		pattern.NewSpace(3, true),
		pattern.NewNewline(4, false),
	}

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var back pattern.List
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, l, back)
	assert.Equal(t, l.Hash(), back.Hash())
}

func TestListJSON_RejectsInvalidRegex(t *testing.T) {
	raw := `[{"index":0,"expected":true,"kind":"regex","text":"a["}]`
	var l pattern.List
	assert.Error(t, json.Unmarshal([]byte(raw), &l))
}

func TestListHash_SensitiveToFields(t *testing.T) {
	a := pattern.List{pattern.NewText(0, true, "a", false, false)}
	b := pattern.List{pattern.NewText(0, true, "a", true, false)}
	c := pattern.List{pattern.NewText(0, false, "a", false, false)}
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, a.Hash(), pattern.List{pattern.NewText(0, true, "a", false, false)}.Hash())
}
