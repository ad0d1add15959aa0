package resultstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaVersion guards the on-disk format. Incompatible databases are
// refused, not migrated.
const schemaVersion = "1"

var ErrIncompatibleSchema = errors.New("result store schema version is incompatible")

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS build_result (
	student_id TEXT PRIMARY KEY,
	checksum   INTEGER,
	reason     TEXT
);

CREATE TABLE IF NOT EXISTS compile_result (
	student_id TEXT PRIMARY KEY,
	output     TEXT NOT NULL DEFAULT '',
	reason     TEXT
);

CREATE TABLE IF NOT EXISTS execute_result (
	student_id           TEXT NOT NULL,
	testcase_id          TEXT NOT NULL,
	execute_config_mtime INTEGER,
	output_files_blob    BLOB,
	reason               TEXT,
	PRIMARY KEY (student_id, testcase_id)
);

CREATE TABLE IF NOT EXISTS test_result (
	student_id        TEXT NOT NULL,
	testcase_id       TEXT NOT NULL,
	test_config_mtime INTEGER,
	result_blob       BLOB,
	reason            TEXT,
	PRIMARY KEY (student_id, testcase_id)
);

CREATE TABLE IF NOT EXISTS result_timestamp (
	student_id TEXT PRIMARY KEY,
	timestamp  INTEGER NOT NULL
);
`

func initSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create result store schema: %w", err)
	}

	var version string
	err := db.Get(&version, `SELECT value FROM meta WHERE key = 'schema_version'`)
	switch {
	case err == nil:
		if version != schemaVersion {
			return fmt.Errorf("%w: found %s, want %s", ErrIncompatibleSchema, version, schemaVersion)
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to read schema version: %w", err)
	}
}
