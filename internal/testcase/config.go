// Package testcase persists per-test-case configuration: the inputs a
// student's program runs against and the expected-output patterns its
// results are scored with. Each test case is a directory holding two
// TOML records; each record carries its own modification timestamp,
// which the rollback detector compares against stored stage results.
package testcase

import (
	"time"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/pattern"
)

const DefaultTimeoutSec = 5.0

// ExecuteConfig describes one run of the student's executable.
type ExecuteConfig struct {
	Mtime      time.Time
	TimeoutSec float64
	InputFiles map[fileid.ID][]byte
}

// Timeout returns the wall-clock limit, falling back to the default
// when the record does not set one.
func (c ExecuteConfig) Timeout() time.Duration {
	sec := c.TimeoutSec
	if sec <= 0 {
		sec = DefaultTimeoutSec
	}
	return time.Duration(sec * float64(time.Second))
}

// TestConfig describes how the run's outputs are scored.
type TestConfig struct {
	Mtime           time.Time
	IgnoreCase      bool
	ExpectedOutputs map[fileid.ID]pattern.List
}
