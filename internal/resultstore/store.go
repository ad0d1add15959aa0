package resultstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/puzpuzpuz/xsync/v3"
	_ "modernc.org/sqlite"

	"github.com/yasu-a/autoprogen/internal/fileid"
	"github.com/yasu-a/autoprogen/internal/stage"
)

// Store is the stage-result store. Reads may run concurrently; writes
// to the same student serialize on a per-student mutex and run inside
// a transaction together with their downstream deletes.
type Store struct {
	db    *sqlx.DB
	locks *xsync.MapOf[string, *sync.Mutex]
	now   func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent stage writes.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:    db,
		locks: xsync.NewMapOf[string, *sync.Mutex](),
		now:   time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) studentLock(studentID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrCompute(studentID, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// write runs fn inside a transaction holding the student's write lock
// and bumps the student's result timestamp.
func (s *Store) write(studentID string, fn func(tx *sqlx.Tx) error) error {
	mu := s.studentLock(studentID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin result store tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO result_timestamp (student_id, timestamp) VALUES (?, ?)
		ON CONFLICT (student_id) DO UPDATE SET timestamp = excluded.timestamp`,
		studentID, s.now().UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to update result timestamp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result store tx: %w", err)
	}
	return nil
}

// PutBuild stores a Build record and removes every downstream record
// of the student in the same transaction.
func (s *Store) PutBuild(r BuildResult) error {
	return s.write(r.StudentID, func(tx *sqlx.Tx) error {
		if err := deleteStages(tx, r.StudentID, stage.Compile); err != nil {
			return err
		}
		var checksum *int64
		if r.Success() {
			v := int64(r.Checksum)
			checksum = &v
		}
		_, err := tx.Exec(`INSERT INTO build_result (student_id, checksum, reason) VALUES (?, ?, ?)
			ON CONFLICT (student_id) DO UPDATE SET checksum = excluded.checksum, reason = excluded.reason`,
			r.StudentID, checksum, encodeReason(r.Failure))
		if err != nil {
			return fmt.Errorf("failed to write build result: %w", err)
		}
		return nil
	})
}

// PutCompile stores a Compile record and removes all execute and test
// records of the student.
func (s *Store) PutCompile(r CompileResult) error {
	return s.write(r.StudentID, func(tx *sqlx.Tx) error {
		if err := deleteStages(tx, r.StudentID, stage.Execute); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO compile_result (student_id, output, reason) VALUES (?, ?, ?)
			ON CONFLICT (student_id) DO UPDATE SET output = excluded.output, reason = excluded.reason`,
			r.StudentID, r.Output, encodeReason(r.Failure))
		if err != nil {
			return fmt.Errorf("failed to write compile result: %w", err)
		}
		return nil
	})
}

// PutExecute stores an Execute record and removes the test record of
// the same test case.
func (s *Store) PutExecute(r ExecuteResult) error {
	var mtime *int64
	var blob []byte
	if r.Success() {
		v := r.ConfigMtime.UnixMicro()
		mtime = &v
		var err error
		blob, err = encodeBlob(r.OutputFiles)
		if err != nil {
			return err
		}
	}
	return s.write(r.StudentID, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`DELETE FROM test_result WHERE student_id = ? AND testcase_id = ?`,
			r.StudentID, r.TestcaseID)
		if err != nil {
			return fmt.Errorf("failed to delete downstream test result: %w", err)
		}
		_, err = tx.Exec(`INSERT INTO execute_result
			(student_id, testcase_id, execute_config_mtime, output_files_blob, reason) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (student_id, testcase_id) DO UPDATE SET
				execute_config_mtime = excluded.execute_config_mtime,
				output_files_blob = excluded.output_files_blob,
				reason = excluded.reason`,
			r.StudentID, r.TestcaseID, mtime, blob, encodeReason(r.Failure))
		if err != nil {
			return fmt.Errorf("failed to write execute result: %w", err)
		}
		return nil
	})
}

// PutTest stores a Test record; it is the last stage of its path.
func (s *Store) PutTest(r TestResult) error {
	var mtime *int64
	var blob []byte
	if r.Success() {
		v := r.ConfigMtime.UnixMicro()
		mtime = &v
		var err error
		blob, err = encodeBlob(r.Entries)
		if err != nil {
			return err
		}
	}
	return s.write(r.StudentID, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO test_result
			(student_id, testcase_id, test_config_mtime, result_blob, reason) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (student_id, testcase_id) DO UPDATE SET
				test_config_mtime = excluded.test_config_mtime,
				result_blob = excluded.result_blob,
				reason = excluded.reason`,
			r.StudentID, r.TestcaseID, mtime, blob, encodeReason(r.Failure))
		if err != nil {
			return fmt.Errorf("failed to write test result: %w", err)
		}
		return nil
	})
}

type buildRow struct {
	StudentID string  `db:"student_id"`
	Checksum  *int64  `db:"checksum"`
	Reason    *string `db:"reason"`
}

type compileRow struct {
	StudentID string  `db:"student_id"`
	Output    string  `db:"output"`
	Reason    *string `db:"reason"`
}

type executeRow struct {
	StudentID   string  `db:"student_id"`
	TestcaseID  string  `db:"testcase_id"`
	ConfigMtime *int64  `db:"execute_config_mtime"`
	Blob        []byte  `db:"output_files_blob"`
	Reason      *string `db:"reason"`
}

type testRow struct {
	StudentID   string  `db:"student_id"`
	TestcaseID  string  `db:"testcase_id"`
	ConfigMtime *int64  `db:"test_config_mtime"`
	Blob        []byte  `db:"result_blob"`
	Reason      *string `db:"reason"`
}

// GetBuild returns the stored Build record, or nil when none exists.
func (s *Store) GetBuild(studentID string) (*BuildResult, error) {
	var row buildRow
	err := s.db.Get(&row, `SELECT * FROM build_result WHERE student_id = ?`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read build result: %w", err)
	}
	r := &BuildResult{StudentID: row.StudentID, Failure: decodeFailure(row.Reason)}
	if row.Checksum != nil {
		r.Checksum = uint64(*row.Checksum)
	}
	return r, nil
}

func (s *Store) GetCompile(studentID string) (*CompileResult, error) {
	var row compileRow
	err := s.db.Get(&row, `SELECT * FROM compile_result WHERE student_id = ?`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read compile result: %w", err)
	}
	return &CompileResult{
		StudentID: row.StudentID,
		Output:    row.Output,
		Failure:   decodeFailure(row.Reason),
	}, nil
}

func (s *Store) GetExecute(studentID, testcaseID string) (*ExecuteResult, error) {
	var row executeRow
	err := s.db.Get(&row, `SELECT * FROM execute_result WHERE student_id = ? AND testcase_id = ?`,
		studentID, testcaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read execute result: %w", err)
	}
	r := &ExecuteResult{
		StudentID:  row.StudentID,
		TestcaseID: row.TestcaseID,
		Failure:    decodeFailure(row.Reason),
	}
	if row.ConfigMtime != nil {
		r.ConfigMtime = time.UnixMicro(*row.ConfigMtime)
	}
	if row.Blob != nil {
		r.OutputFiles = make(map[fileid.ID][]byte)
		if err := decodeBlob(row.Blob, &r.OutputFiles); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s *Store) GetTest(studentID, testcaseID string) (*TestResult, error) {
	var row testRow
	err := s.db.Get(&row, `SELECT * FROM test_result WHERE student_id = ? AND testcase_id = ?`,
		studentID, testcaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read test result: %w", err)
	}
	r := &TestResult{
		StudentID:  row.StudentID,
		TestcaseID: row.TestcaseID,
		Failure:    decodeFailure(row.Reason),
	}
	if row.ConfigMtime != nil {
		r.ConfigMtime = time.UnixMicro(*row.ConfigMtime)
	}
	if row.Blob != nil {
		if err := decodeBlob(row.Blob, &r.Entries); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LastModified returns the student's result timestamp. ok is false
// when the student has no records.
func (s *Store) LastModified(studentID string) (t time.Time, ok bool, err error) {
	var micros int64
	err = s.db.Get(&micros, `SELECT timestamp FROM result_timestamp WHERE student_id = ?`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read result timestamp: %w", err)
	}
	return time.UnixMicro(micros), true, nil
}

// Students lists every student with at least one record.
func (s *Store) Students() ([]string, error) {
	var ids []string
	err := s.db.Select(&ids, `SELECT student_id FROM result_timestamp ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return ids, nil
}

// Clear removes every record of the student.
func (s *Store) Clear(studentID string) error {
	return s.write(studentID, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM build_result WHERE student_id = ?`,
			`DELETE FROM compile_result WHERE student_id = ?`,
			`DELETE FROM execute_result WHERE student_id = ?`,
			`DELETE FROM test_result WHERE student_id = ?`,
		} {
			if _, err := tx.Exec(stmt, studentID); err != nil {
				return fmt.Errorf("failed to clear results: %w", err)
			}
		}
		return nil
	})
}

// Rollback removes the record of fromStage and every later stage on
// the path, in one transaction.
func (s *Store) Rollback(studentID string, path stage.Path, fromStage stage.Stage) error {
	tail := path.From(fromStage)
	if tail == nil {
		return fmt.Errorf("stage %s is not on the path", fromStage)
	}
	return s.write(studentID, func(tx *sqlx.Tx) error {
		for _, st := range tail {
			if err := deleteStage(tx, studentID, st); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteStage(tx *sqlx.Tx, studentID string, st stage.Stage) error {
	var err error
	switch st.Kind {
	case stage.Build:
		_, err = tx.Exec(`DELETE FROM build_result WHERE student_id = ?`, studentID)
	case stage.Compile:
		_, err = tx.Exec(`DELETE FROM compile_result WHERE student_id = ?`, studentID)
	case stage.Execute:
		_, err = tx.Exec(`DELETE FROM execute_result WHERE student_id = ? AND testcase_id = ?`,
			studentID, st.TestcaseID)
	case stage.Test:
		_, err = tx.Exec(`DELETE FROM test_result WHERE student_id = ? AND testcase_id = ?`,
			studentID, st.TestcaseID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s result: %w", st, err)
	}
	return nil
}

// deleteStages removes every record of the student from the given
// stage kind onward, across all test cases.
func deleteStages(tx *sqlx.Tx, studentID string, from stage.Kind) error {
	stmts := map[stage.Kind]string{
		stage.Build:   `DELETE FROM build_result WHERE student_id = ?`,
		stage.Compile: `DELETE FROM compile_result WHERE student_id = ?`,
		stage.Execute: `DELETE FROM execute_result WHERE student_id = ?`,
		stage.Test:    `DELETE FROM test_result WHERE student_id = ?`,
	}
	for _, kind := range []stage.Kind{stage.Build, stage.Compile, stage.Execute, stage.Test} {
		if kind < from {
			continue
		}
		if _, err := tx.Exec(stmts[kind], studentID); err != nil {
			return fmt.Errorf("failed to delete downstream %s results: %w", kind, err)
		}
	}
	return nil
}

func encodeReason(f *Failure) *string {
	if f == nil {
		return nil
	}
	s := f.encode()
	return &s
}
