// Package api defines the read-only report surface over stored
// grading results: the JSON shapes a frontend or export consumes.
package api

import "time"

// Status summarizes a stage or a whole student.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// StudentReport aggregates everything stored for one student.
type StudentReport struct {
	StudentID    string           `json:"student_id"`
	Status       Status           `json:"status"`
	LastModified *time.Time       `json:"last_modified,omitempty"`
	Build        *StageReport     `json:"build,omitempty"`
	Compile      *StageReport     `json:"compile,omitempty"`
	Testcases    []TestcaseReport `json:"testcases,omitempty"`
}

// StageReport is the outcome of one Build or Compile stage.
type StageReport struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

// TestcaseReport is the outcome of one test case's Execute and Test
// stages.
type TestcaseReport struct {
	TestcaseID string           `json:"testcase_id"`
	Status     Status           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Message    string           `json:"message,omitempty"`
	Files      []TestFileReport `json:"files,omitempty"`
}

// TestFileReport is the verdict for one scored file.
type TestFileReport struct {
	FileID   string `json:"file_id"`
	Kind     string `json:"kind"`
	Accepted bool   `json:"accepted"`
	Actual   string `json:"actual,omitempty"`
}
