package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ConnectionError means the backing store could not be reached at open time.
// It is fatal: the pipeline must not start without a ledger.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ledger %s unreachable: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Ledger is the durable log of jobs and per-entity per-stage outcomes.
// It holds a single SQLite connection for the process lifetime; every write
// commits immediately. A connection lost mid-run is not retried — the next
// write fails and the job aborts.
type Ledger struct {
	conn    *sql.DB
	path    string
	project string

	jobID int // current job id, 0 until computed

	lastJobID    int // memoized last successful job id, 0 = none
	lastJobKnown bool

	tallies map[string]map[Status]int
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id      INTEGER PRIMARY KEY,
    project TEXT NOT NULL,
    start   TEXT NOT NULL,
    end     TEXT,
    success INTEGER,
    reason  TEXT,
    pid     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project);
CREATE INDEX IF NOT EXISTS idx_jobs_success ON jobs(success);

CREATE TABLE IF NOT EXISTS operations (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id   INTEGER NOT NULL REFERENCES jobs(id),
    stage    TEXT NOT NULL,
    entity   TEXT NOT NULL,
    role     INTEGER NOT NULL,
    modified TEXT NOT NULL,
    status   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_job ON operations(job_id);
CREATE INDEX IF NOT EXISTS idx_operations_stage ON operations(stage);
CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
`

// Open opens or creates the ledger database at path, creating the parent
// directory if needed. Any failure to reach or initialise the store is
// reported as *ConnectionError.
func Open(path, project string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ConnectionError{Path: path, Err: err}
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}
	return &Ledger{
		conn:    conn,
		path:    path,
		project: project,
		tallies: make(map[string]map[Status]int),
	}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// JobName renders a job id the way the file layout expects it: zero-padded
// to 5 digits ("00042" for log files and response directories).
func JobName(id int) string {
	return fmt.Sprintf("%05d", id)
}
