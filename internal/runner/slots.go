package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// Slots holds the per-student dynamic files that stages hand to each
// other: the decoded source written by Build and the executable
// written by Compile. Unlike scratch workspaces these survive between
// runs, so an unchanged upstream stage never has to redo its work.
type Slots struct {
	root string
}

func NewSlots(root string) (*Slots, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create slot directory: %w", err)
	}
	return &Slots{root: root}, nil
}

func (s *Slots) path(studentID, name string) string {
	return filepath.Join(s.root, studentID, name)
}

func (s *Slots) put(studentID, name string, data []byte, perm os.FileMode) error {
	path := s.path(studentID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create slot for %s: %w", studentID, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write slot %s for %s: %w", name, studentID, err)
	}
	return nil
}

func (s *Slots) PutSource(studentID string, data []byte) error {
	return s.put(studentID, sourceFileName, data, 0o644)
}

func (s *Slots) GetSource(studentID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(studentID, sourceFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read source slot for %s: %w", studentID, err)
	}
	return data, nil
}

func (s *Slots) PutExecutable(studentID string, data []byte) error {
	return s.put(studentID, executableFileName, data, 0o755)
}

func (s *Slots) GetExecutable(studentID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(studentID, executableFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read executable slot for %s: %w", studentID, err)
	}
	return data, nil
}

func (s *Slots) HasExecutable(studentID string) bool {
	_, err := os.Stat(s.path(studentID, executableFileName))
	return err == nil
}
