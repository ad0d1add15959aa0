// Package stage defines the grading pipeline's unit of work and the
// ordered stage paths derived from the configured test cases.
package stage

import "fmt"

type Kind int

const (
	Build Kind = iota
	Compile
	Execute
	Test
)

func (k Kind) String() string {
	switch k {
	case Build:
		return "build"
	case Compile:
		return "compile"
	case Execute:
		return "execute"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage identifies one unit of work. TestcaseID is empty for Build and
// Compile, which are shared across every path of a student.
type Stage struct {
	Kind       Kind
	TestcaseID string
}

func (s Stage) String() string {
	if s.TestcaseID == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.TestcaseID)
}

// Path is the ordered stage sequence for one test case.
type Path []Stage

// PathsFor yields one path per test case, each Build, Compile,
// Execute(t), Test(t). With no test cases a single [Build, Compile]
// path remains so compilation still gets graded.
func PathsFor(testcaseIDs []string) []Path {
	if len(testcaseIDs) == 0 {
		return []Path{{{Kind: Build}, {Kind: Compile}}}
	}
	paths := make([]Path, 0, len(testcaseIDs))
	for _, id := range testcaseIDs {
		paths = append(paths, Path{
			{Kind: Build},
			{Kind: Compile},
			{Kind: Execute, TestcaseID: id},
			{Kind: Test, TestcaseID: id},
		})
	}
	return paths
}

// From returns the suffix of the path starting at s, or nil when s is
// not on the path.
func (p Path) From(s Stage) []Stage {
	for i, st := range p {
		if st == s {
			return p[i:]
		}
	}
	return nil
}
