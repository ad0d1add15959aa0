// Package invoke provides the default compiler and executable
// collaborators: plain child processes in a scratch directory, bounded
// by wall-clock timeouts.
package invoke

import (
	"errors"
	"fmt"
)

// ErrTimeout reports that an invocation hit its wall-clock limit.
var ErrTimeout = errors.New("invocation timed out")

// ErrNoArtifact reports a compiler run that exited cleanly but left no
// executable behind.
var ErrNoArtifact = errors.New("compiler produced no executable artifact")

// ExitError reports a child process that finished with a non-zero
// exit code. Output holds whatever the process wrote before exiting.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}
