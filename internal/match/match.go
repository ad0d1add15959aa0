// Package match compares a produced text stream against a pattern
// list. The whole list compiles into a single regular expression;
// every token is classified as matched or non-matched and the verdict
// follows from how the classification lines up with token polarity.
package match

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/yasu-a/autoprogen/internal/pattern"
)

// Options configures a single match call. Unknown keys in a decoded
// options record are ignored; construction of anything else is a
// compile error by design of the struct.
type Options struct {
	IgnoreCase bool `json:"ignore_case"`
}

// Span is a token that captured input, with offsets into the
// normalized input string.
type Span struct {
	Pattern pattern.Pattern `json:"pattern"`
	Begin   int             `json:"begin"`
	End     int             `json:"end"`
}

// Result carries the full classification of one match call. Offsets
// refer to the normalized input (see Normalize); callers highlighting
// spans must normalize the same way.
type Result struct {
	Regex      string            `json:"regex"`
	Matched    []Span            `json:"matched"`
	NonMatched []pattern.Pattern `json:"non_matched"`
	Elapsed    time.Duration     `json:"elapsed"`
}

// Accepted reports the overall verdict: every matched token is
// expected and every non-matched token is forbidden.
func (r Result) Accepted() bool {
	for _, s := range r.Matched {
		if !s.Pattern.Expected {
			return false
		}
	}
	for _, p := range r.NonMatched {
		if p.Expected {
			return false
		}
	}
	return true
}

// Normalize applies the full-width to half-width compatibility fold
// used on every input before matching. It is idempotent.
func Normalize(s string) string {
	return width.Fold.String(s)
}

// Match runs the pattern list against the input and classifies every
// token. It is total over valid lists; the only error is a failed
// regex compilation, which valid lists cannot produce.
func Match(input string, list pattern.List, opt Options) (Result, error) {
	start := time.Now()
	if err := list.Validate(); err != nil {
		return Result{}, err
	}

	norm := Normalize(input)
	expected := list.ExpectedSeq()
	runs := list.ForbiddenRuns()

	expr := expectedExpr(expected, opt)
	re, err := compileCached(expr)
	if err != nil {
		return Result{}, fmt.Errorf("regex compilation failed: %w", err)
	}

	res := Result{Regex: expr}

	m := re.FindStringSubmatchIndex(norm)
	if m == nil {
		// Nothing is classified yet; every token in the list counts as
		// non-matched. With a non-empty expected sequence this rejects.
		res.NonMatched = append(res.NonMatched, list...)
		res.Elapsed = time.Since(start)
		return res, nil
	}

	// Span bounds of every expected token, kept even for empty
	// captures so forbidden-run intervals can be derived.
	bounds := make([][2]int, len(expected))
	for i, p := range expected {
		gi := re.SubexpIndex(groupName(i))
		begin, end := m[2*gi], m[2*gi+1]
		bounds[i] = [2]int{begin, end}
		if begin >= 0 && end > begin {
			res.Matched = append(res.Matched, Span{Pattern: p, Begin: begin, End: end})
		} else {
			res.NonMatched = append(res.NonMatched, p)
		}
	}

	for _, run := range runs {
		left := 0
		if run.PrecedingExpected > 0 {
			left = bounds[run.PrecedingExpected-1][1]
		}
		right := len(norm)
		if run.PrecedingExpected < len(expected) {
			right = bounds[run.PrecedingExpected][0]
		}
		if err := searchRun(norm, left, right, run, opt, &res); err != nil {
			return Result{}, err
		}
	}

	sortResult(&res)
	res.Elapsed = time.Since(start)
	return res, nil
}

// searchRun looks for a forbidden run inside its surrounding interval
// and classifies each token of the run by its own capture group.
func searchRun(norm string, left, right int, run pattern.Run, opt Options, res *Result) error {
	if left > right {
		// Expected spans never overlap, but be safe against an empty
		// interval collapsing the wrong way.
		left = right
	}
	expr := runExpr(run.Patterns, opt)
	re, err := compileCached(expr)
	if err != nil {
		return fmt.Errorf("regex compilation failed: %w", err)
	}

	interval := norm[left:right]
	m := re.FindStringSubmatchIndex(interval)
	if m == nil {
		res.NonMatched = append(res.NonMatched, run.Patterns...)
		return nil
	}
	for i, p := range run.Patterns {
		gi := re.SubexpIndex(groupName(i))
		begin, end := m[2*gi], m[2*gi+1]
		if begin >= 0 && end > begin {
			res.Matched = append(res.Matched, Span{Pattern: p, Begin: left + begin, End: left + end})
		} else {
			res.NonMatched = append(res.NonMatched, p)
		}
	}
	return nil
}

// expectedExpr builds the anchored full-input expression: lazy gaps
// around each expected token's named group.
func expectedExpr(expected []pattern.Pattern, opt Options) string {
	var b strings.Builder
	b.WriteString(flagPrefix(opt))
	b.WriteString(`\A.*?`)
	for i, p := range expected {
		if i > 0 {
			b.WriteString(`.*?`)
		}
		fmt.Fprintf(&b, "(?P<%s>%s)", groupName(i), p.Fragment())
	}
	b.WriteString(`.*?\z`)
	return b.String()
}

// runExpr is the unanchored variant used to search a forbidden run
// inside its interval.
func runExpr(run []pattern.Pattern, opt Options) string {
	var b strings.Builder
	b.WriteString(flagPrefix(opt))
	for i, p := range run {
		if i > 0 {
			b.WriteString(`.*?`)
		}
		fmt.Fprintf(&b, "(?P<%s>%s)", groupName(i), p.Fragment())
	}
	return b.String()
}

func flagPrefix(opt Options) string {
	if opt.IgnoreCase {
		return "(?smi)"
	}
	return "(?sm)"
}

func groupName(i int) string {
	return fmt.Sprintf("g%d", i)
}

func sortResult(res *Result) {
	sort.Slice(res.Matched, func(i, j int) bool {
		return res.Matched[i].Pattern.Index < res.Matched[j].Pattern.Index
	})
	sort.Slice(res.NonMatched, func(i, j int) bool {
		return res.NonMatched[i].Index < res.NonMatched[j].Index
	})
}
