// Package submission reads extracted student submissions: one folder
// per student under a common root, owned by the archive importer and
// treated as read-only here.
package submission

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSource reports a submission folder without any C source file.
var ErrNoSource = errors.New("no C source file in submission")

// Accessor looks up submissions by student id.
type Accessor struct {
	root string
}

func NewAccessor(root string) *Accessor {
	return &Accessor{root: root}
}

func (a *Accessor) dir(studentID string) string {
	return filepath.Join(a.root, studentID)
}

// Exists reports whether the student has a submission folder.
func (a *Accessor) Exists(studentID string) (bool, error) {
	info, err := os.Stat(a.dir(studentID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat submission folder: %w", err)
	}
	return info.IsDir(), nil
}

// Students lists every student with a submission folder, sorted.
func (a *Accessor) Students() ([]string, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Source returns the raw bytes of the student's C source and its file
// name. A file named main.c wins; otherwise the lexicographically
// first .c file anywhere in the folder.
func (a *Accessor) Source(studentID string) ([]byte, string, error) {
	dir := a.dir(studentID)
	var candidates []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".c") {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			candidates = append(candidates, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan submission folder: %w", err)
	}
	if len(candidates) == 0 {
		return nil, "", ErrNoSource
	}

	sort.Strings(candidates)
	chosen := candidates[0]
	for _, c := range candidates {
		if filepath.Base(c) == "main.c" {
			chosen = c
			break
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(chosen)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read source file: %w", err)
	}
	return data, chosen, nil
}
