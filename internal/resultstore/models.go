// Package resultstore persists per-student, per-stage grading results
// in a local sqlite database. Every write updates the student's result
// timestamp and atomically removes downstream records, so a stored
// success always implies its upstream successes are still valid.
package resultstore

import (
	"strings"
	"time"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/match"
	"github.com/yasu-a/autoprogen/internal/pattern"
)

// FailureKind categorizes a stage failure.
type FailureKind string

const (
	FailureSubmissionMissing FailureKind = "submission_missing"
	FailureSourceMissing     FailureKind = "source_missing"
	FailureSourceDecode      FailureKind = "source_decode"
	FailureCompile           FailureKind = "compile_failure"
	FailureCompileTimeout    FailureKind = "compile_timeout"
	FailureExecutableMissing FailureKind = "executable_missing"
	FailureExecuteTimeout    FailureKind = "execute_timeout"
	FailureRuntimeError      FailureKind = "runtime_error"
	FailureTestInternal      FailureKind = "test_internal"
	// FailurePrerequisite marks a stage that could not run because an
	// upstream stage recorded a failure.
	FailurePrerequisite FailureKind = "prerequisite"
)

// Failure is the reason a stage failed. A nil *Failure on a record
// means the stage succeeded.
type Failure struct {
	Kind    FailureKind
	Message string
}

// The reason column stores "kind: message" so the record stays
// readable in a plain sqlite shell.
func (f Failure) encode() string {
	return string(f.Kind) + ": " + f.Message
}

func decodeFailure(reason *string) *Failure {
	if reason == nil {
		return nil
	}
	kind, msg, found := strings.Cut(*reason, ": ")
	if !found {
		return &Failure{Kind: FailureKind(*reason)}
	}
	return &Failure{Kind: FailureKind(kind), Message: msg}
}

// BuildResult records the outcome of locating and decoding the
// student's source. The checksum snapshots the submission folder so a
// re-uploaded submission invalidates everything downstream.
type BuildResult struct {
	StudentID string
	Checksum  uint64
	Failure   *Failure
}

func (r BuildResult) Success() bool { return r.Failure == nil }

// CompileResult records the compiler invocation; Output holds the
// compiler's combined stdout and stderr verbatim.
type CompileResult struct {
	StudentID string
	Output    string
	Failure   *Failure
}

func (r CompileResult) Success() bool { return r.Failure == nil }

// ExecuteResult records one run of the executable against a test
// case's inputs. ConfigMtime is the execute-config stamp the run used.
type ExecuteResult struct {
	StudentID   string
	TestcaseID  string
	ConfigMtime time.Time
	OutputFiles map[fileid.ID][]byte
	Failure     *Failure
}

func (r ExecuteResult) Success() bool { return r.Failure == nil }

// TestResult records the scoring of an Execute result against the
// test config. The per-file entries carry the verdicts; the stage
// itself fails only on internal error.
type TestResult struct {
	StudentID   string
	TestcaseID  string
	ConfigMtime time.Time
	Entries     []TestEntry
	Failure     *Failure
}

func (r TestResult) Success() bool { return r.Failure == nil }

// Accepted reports whether every scored file accepted.
func (r TestResult) Accepted() bool {
	if !r.Success() {
		return false
	}
	for _, e := range r.Entries {
		if !e.Accepted() {
			return false
		}
	}
	return true
}

type EntryKind string

const (
	// EntryTested: the file appeared in both the expected map and the
	// produced outputs and was run through the match engine.
	EntryTested EntryKind = "tested"
	// EntryAbsent: expected but never produced.
	EntryAbsent EntryKind = "absent"
	// EntryUnexpected: produced but not expected; kept as evidence.
	EntryUnexpected EntryKind = "unexpected"
)

// TestEntry is the verdict for a single file id.
type TestEntry struct {
	FileID   fileid.ID     `json:"file_id"`
	Kind     EntryKind     `json:"kind"`
	Expected pattern.List  `json:"expected,omitempty"`
	Actual   []byte        `json:"actual,omitempty"`
	Match    *match.Result `json:"match,omitempty"`
}

// Accepted is false for absent files, the match verdict for tested
// files, and true for surplus files, which are reported but do not
// penalize.
func (e TestEntry) Accepted() bool {
	switch e.Kind {
	case EntryTested:
		return e.Match != nil && e.Match.Accepted()
	case EntryAbsent:
		return false
	default:
		return true
	}
}
