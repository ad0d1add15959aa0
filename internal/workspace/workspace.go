// Package workspace manages the disposable scratch directories that
// compile and execute stages run in. Each workspace gets a globally
// unique id; nothing is ever shared between two workspaces.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// Workspace is a handle over one scratch directory. Callers outside
// the compile/execute runners should go through Put/Get rather than
// touching Dir directly.
type Workspace struct {
	id  string
	dir string
}

// New creates an empty scratch directory under root.
func New(root string) (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	return &Workspace{id: id, dir: dir}, nil
}

func (w *Workspace) ID() string { return w.id }

// Dir exposes the directory for process invocation. Only the compile
// and execute runners may hand this to collaborators.
func (w *Workspace) Dir() string { return w.dir }

// Put writes a file under the workspace, creating parent directories
// for relative-path names.
func (w *Workspace) Put(name string, data []byte, perm fs.FileMode) error {
	path := filepath.Join(w.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (w *Workspace) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (w *Workspace) Has(name string) bool {
	_, err := os.Stat(filepath.Join(w.dir, filepath.FromSlash(name)))
	return err == nil
}

// Snapshot returns the set of regular files currently in the
// workspace, as slash-separated relative paths.
func (w *Workspace) Snapshot() (mapset.Set[string], error) {
	files := mapset.NewThreadUnsafeSet[string]()
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		files.Add(filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot workspace: %w", err)
	}
	return files, nil
}

// CreatedSince returns the files added since the snapshot, sorted.
func (w *Workspace) CreatedSince(snap mapset.Set[string]) ([]string, error) {
	now, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	created := now.Difference(snap).ToSlice()
	sort.Strings(created)
	return created, nil
}

// Remove deletes the workspace directory and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.id, err)
	}
	return nil
}
