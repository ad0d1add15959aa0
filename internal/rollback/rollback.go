// Package rollback decides whether a student's stored results are
// stale. It compares the evidence recorded with each success (folder
// checksum, config stamps) against the current external state and
// reports the earliest stage whose inputs changed.
package rollback

import (
	"time"

	"github.com/yasu-a/autoprogen/internal/resultstore"
	"github.com/yasu-a/autoprogen/internal/stage"
)

// Chain is the stored result chain of one stage path. Compile carries
// no intrinsic invalidator: a Build rollback removes it anyway.
type Chain struct {
	Build   *resultstore.BuildResult
	Execute *resultstore.ExecuteResult
	Test    *resultstore.TestResult
}

// Inputs is the current external state the chain is checked against.
type Inputs struct {
	SubmissionChecksum uint64
	ExecuteConfigMtime time.Time
	TestConfigMtime    time.Time
}

// Detect returns the earliest stage whose recorded success no longer
// matches the current inputs, or nil when the chain is fresh. Only
// success records are checked; failures are retried by explicit
// clearing, never by rollback.
func Detect(testcaseID string, c Chain, in Inputs) *stage.Stage {
	if c.Build != nil && c.Build.Success() && c.Build.Checksum != in.SubmissionChecksum {
		return &stage.Stage{Kind: stage.Build}
	}
	if c.Execute != nil && c.Execute.Success() && !c.Execute.ConfigMtime.Equal(in.ExecuteConfigMtime) {
		return &stage.Stage{Kind: stage.Execute, TestcaseID: testcaseID}
	}
	if c.Test != nil && c.Test.Success() && !c.Test.ConfigMtime.Equal(in.TestConfigMtime) {
		return &stage.Stage{Kind: stage.Test, TestcaseID: testcaseID}
	}
	return nil
}
