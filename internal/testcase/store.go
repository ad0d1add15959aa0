package testcase

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/pattern"
)

const (
	executeConfigFile = "execute_config.toml"
	testConfigFile    = "test_config.toml"
)

// Store reads and writes test-case config records under one directory
// per test case. Parsed records are cached; the cache is keyed on the
// file's size and modtime so external edits are picked up. A single
// coarse mutex guards the cache: reads dominate, writes are rare
// instructor edits.
type Store struct {
	root string

	mu        sync.Mutex
	execCache map[string]cacheEntry[ExecuteConfig]
	testCache map[string]cacheEntry[TestConfig]
}

type cacheEntry[T any] struct {
	size    int64
	modTime time.Time
	cfg     T
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create testcase directory: %w", err)
	}
	return &Store{
		root:      root,
		execCache: make(map[string]cacheEntry[ExecuteConfig]),
		testCache: make(map[string]cacheEntry[TestConfig]),
	}, nil
}

// List returns the configured test-case ids in sorted order. A test
// case exists once its directory holds an execute-config record.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read testcase directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), executeConfigFile)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Wire form of the records. Input files and expected outputs are
// sorted slices rather than maps so the serialization round-trips
// byte for byte.

type executeConfigTOML struct {
	Mtime      time.Time       `toml:"mtime"`
	TimeoutSec float64         `toml:"timeout_sec,omitempty"`
	InputFiles []inputFileTOML `toml:"input_files,omitempty"`
}

type inputFileTOML struct {
	ID      string `toml:"id"`
	Content string `toml:"content,multiline"`
}

type testConfigTOML struct {
	Mtime           time.Time            `toml:"mtime"`
	IgnoreCase      bool                 `toml:"ignore_case,omitempty"`
	ExpectedOutputs []expectedOutputTOML `toml:"expected_outputs,omitempty"`
}

type expectedOutputTOML struct {
	ID       string            `toml:"id"`
	Patterns []pattern.Pattern `toml:"patterns"`
}

func (s *Store) ExecuteConfig(testcaseID string) (ExecuteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, testcaseID, executeConfigFile)
	info, err := os.Stat(path)
	if err != nil {
		return ExecuteConfig{}, fmt.Errorf("execute config for %s: %w", testcaseID, err)
	}
	if c, ok := s.execCache[testcaseID]; ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ExecuteConfig{}, fmt.Errorf("execute config for %s: %w", testcaseID, err)
	}
	var rec executeConfigTOML
	if err := toml.Unmarshal(data, &rec); err != nil {
		return ExecuteConfig{}, fmt.Errorf("execute config for %s: %w", testcaseID, err)
	}

	cfg := ExecuteConfig{
		Mtime:      rec.Mtime,
		TimeoutSec: rec.TimeoutSec,
		InputFiles: make(map[fileid.ID][]byte, len(rec.InputFiles)),
	}
	for _, f := range rec.InputFiles {
		id := fileid.ID(f.ID)
		if err := id.Validate(); err != nil {
			return ExecuteConfig{}, fmt.Errorf("execute config for %s: %w", testcaseID, err)
		}
		cfg.InputFiles[id] = []byte(f.Content)
	}

	s.execCache[testcaseID] = cacheEntry[ExecuteConfig]{size: info.Size(), modTime: info.ModTime(), cfg: cfg}
	return cfg, nil
}

func (s *Store) TestConfig(testcaseID string) (TestConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, testcaseID, testConfigFile)
	info, err := os.Stat(path)
	if err != nil {
		return TestConfig{}, fmt.Errorf("test config for %s: %w", testcaseID, err)
	}
	if c, ok := s.testCache[testcaseID]; ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TestConfig{}, fmt.Errorf("test config for %s: %w", testcaseID, err)
	}
	var rec testConfigTOML
	if err := toml.Unmarshal(data, &rec); err != nil {
		return TestConfig{}, fmt.Errorf("test config for %s: %w", testcaseID, err)
	}

	cfg := TestConfig{
		Mtime:           rec.Mtime,
		IgnoreCase:      rec.IgnoreCase,
		ExpectedOutputs: make(map[fileid.ID]pattern.List, len(rec.ExpectedOutputs)),
	}
	for _, out := range rec.ExpectedOutputs {
		id := fileid.ID(out.ID)
		if err := id.Validate(); err != nil {
			return TestConfig{}, fmt.Errorf("test config for %s: %w", testcaseID, err)
		}
		list := pattern.List(out.Patterns)
		if err := list.Validate(); err != nil {
			return TestConfig{}, fmt.Errorf("test config for %s, file %s: %w", testcaseID, out.ID, err)
		}
		cfg.ExpectedOutputs[id] = list
	}

	s.testCache[testcaseID] = cacheEntry[TestConfig]{size: info.Size(), modTime: info.ModTime(), cfg: cfg}
	return cfg, nil
}

// PutExecuteConfig writes the record, stamping it with the current
// time. The stamp, not the file-system mtime, is what invalidates
// stored Execute results.
func (s *Store) PutExecuteConfig(testcaseID string, cfg ExecuteConfig) (ExecuteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.Mtime = time.Now().Truncate(time.Microsecond)
	rec := executeConfigTOML{Mtime: cfg.Mtime, TimeoutSec: cfg.TimeoutSec}
	for _, id := range sortedIDs(cfg.InputFiles) {
		rec.InputFiles = append(rec.InputFiles, inputFileTOML{ID: string(id), Content: string(cfg.InputFiles[id])})
	}

	if err := s.writeRecord(testcaseID, executeConfigFile, rec); err != nil {
		return ExecuteConfig{}, err
	}
	delete(s.execCache, testcaseID)
	return cfg, nil
}

// PutTestConfig writes the record, stamping it with the current time.
func (s *Store) PutTestConfig(testcaseID string, cfg TestConfig) (TestConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, list := range cfg.ExpectedOutputs {
		if err := list.Validate(); err != nil {
			return TestConfig{}, fmt.Errorf("test config for %s, file %s: %w", testcaseID, id, err)
		}
	}

	cfg.Mtime = time.Now().Truncate(time.Microsecond)
	rec := testConfigTOML{Mtime: cfg.Mtime, IgnoreCase: cfg.IgnoreCase}
	for _, id := range sortedIDs(cfg.ExpectedOutputs) {
		rec.ExpectedOutputs = append(rec.ExpectedOutputs, expectedOutputTOML{ID: string(id), Patterns: cfg.ExpectedOutputs[id]})
	}

	if err := s.writeRecord(testcaseID, testConfigFile, rec); err != nil {
		return TestConfig{}, err
	}
	delete(s.testCache, testcaseID)
	return cfg, nil
}

func (s *Store) writeRecord(testcaseID, name string, rec any) error {
	dir := filepath.Join(s.root, testcaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create testcase %s: %w", testcaseID, err)
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s for %s: %w", name, testcaseID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s for %s: %w", name, testcaseID, err)
	}
	return nil
}

func sortedIDs[V any](m map[fileid.ID]V) []fileid.ID {
	ids := make([]fileid.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
