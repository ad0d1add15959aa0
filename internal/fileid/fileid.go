// Package fileid names the files that flow between a test case and a
// student's program. The two standard streams get reserved ids; every
// other id is a relative path inside the run directory.
package fileid

import (
	"fmt"
	"path"
	"strings"
)

type ID string

const (
	Stdin  ID = "STDIN"
	Stdout ID = "STDOUT"
)

// Reserved on-disk names for the standard streams. These are part of the
// persisted record format and must never change.
const (
	stdinFileName  = "__stdin__"
	stdoutFileName = "__stdout__"
)

func (id ID) Special() bool {
	return id == Stdin || id == Stdout
}

// WorkspaceName returns the file name under which the id materializes
// inside a run directory.
func (id ID) WorkspaceName() string {
	switch id {
	case Stdin:
		return stdinFileName
	case Stdout:
		return stdoutFileName
	default:
		return string(id)
	}
}

// FromWorkspaceName is the inverse of WorkspaceName.
func FromWorkspaceName(name string) ID {
	switch name {
	case stdinFileName:
		return Stdin
	case stdoutFileName:
		return Stdout
	default:
		return ID(name)
	}
}

// Validate rejects ids that would escape the run directory.
func (id ID) Validate() error {
	if id.Special() {
		return nil
	}
	s := string(id)
	if s == "" {
		return fmt.Errorf("empty file id")
	}
	if path.IsAbs(s) {
		return fmt.Errorf("file id %q is absolute", s)
	}
	clean := path.Clean(s)
	if clean != s || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("file id %q is not a clean relative path", s)
	}
	return nil
}
