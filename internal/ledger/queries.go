package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// timeLayout is how timestamps are stored in the database.
const timeLayout = time.RFC3339Nano

// Job represents a row in the jobs table.
type Job struct {
	ID      int
	Project string
	Start   time.Time
	End     *time.Time
	Success *bool
	Reason  string
	PID     int
}

// Operation is one (entity, status) outcome a stage produced within a job.
type Operation struct {
	Entity   string
	Role     Role
	Status   Status
	Modified time.Time
}

// JobID returns the current job id, computing max(id)+1 on first call and
// caching it for the process lifetime. An empty store yields id 1.
func (l *Ledger) JobID() (int, error) {
	if l.jobID != 0 {
		return l.jobID, nil
	}
	var max sql.NullInt64
	if err := l.conn.QueryRow("SELECT MAX(id) FROM jobs").Scan(&max); err != nil {
		return 0, fmt.Errorf("query max job id: %w", err)
	}
	l.jobID = 1
	if max.Valid {
		l.jobID = int(max.Int64) + 1
	}
	return l.jobID, nil
}

// StartJob inserts the row for the current job with its start timestamp and
// owning process id. The end timestamp and success flag stay null until
// CloseJob.
func (l *Ledger) StartJob(start time.Time) error {
	id, err := l.JobID()
	if err != nil {
		return err
	}
	_, err = l.conn.Exec(
		`INSERT INTO jobs (id, project, start, pid) VALUES (?, ?, ?, ?)`,
		id, l.project, start.Format(timeLayout), os.Getpid(),
	)
	if err != nil {
		return fmt.Errorf("start job %d: %w", id, err)
	}
	return nil
}

// CloseJob writes the end timestamp, success flag, and reason for the
// current job. It is called exactly once, on full success or on a job-level
// critical error.
func (l *Ledger) CloseJob(success bool, reason string) error {
	id, err := l.JobID()
	if err != nil {
		return err
	}
	_, err = l.conn.Exec(
		`UPDATE jobs SET end = ?, success = ?, reason = ? WHERE id = ?`,
		time.Now().Format(timeLayout), success, reason, id,
	)
	if err != nil {
		return fmt.Errorf("close job %d: %w", id, err)
	}
	return nil
}

// RecordOperation appends a stage operation for the current job and bumps
// the in-memory per-stage tally used for end-of-pipeline reporting. Each
// call commits on its own; a crash between stages leaves committed records
// intact and resumable.
func (l *Ledger) RecordOperation(stage, entity string, status Status, modified time.Time, role Role) error {
	id, err := l.JobID()
	if err != nil {
		return err
	}
	_, err = l.conn.Exec(
		`INSERT INTO operations (job_id, stage, entity, role, modified, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, stage, entity, int(role), modified.Format(timeLayout), int(status),
	)
	if err != nil {
		return fmt.Errorf("record operation %s/%s: %w", stage, entity, err)
	}
	if l.tallies[stage] == nil {
		l.tallies[stage] = make(map[Status]int)
	}
	l.tallies[stage][status]++
	return nil
}

// Tally returns the in-memory status counts recorded for a stage during
// this process. The returned map is live; callers must not mutate it.
func (l *Ledger) Tally(stage string) map[Status]int {
	return l.tallies[stage]
}

// LastSuccessfulJob returns the most recent job marked successful,
// restricted to jobs in which the given stage produced at least one
// operation when stage is non-empty. The result is memoized after the
// first lookup; ok is false when no such job exists.
func (l *Ledger) LastSuccessfulJob(stage string) (int, bool, error) {
	if l.lastJobKnown {
		return l.lastJobID, l.lastJobID != 0, nil
	}
	query := `SELECT j.id FROM jobs j WHERE j.project = ? AND j.success = 1`
	args := []any{l.project}
	if stage != "" {
		query = `SELECT DISTINCT j.id FROM jobs j
			 JOIN operations o ON o.job_id = j.id
			 WHERE j.project = ? AND j.success = 1 AND o.stage = ?`
		args = append(args, stage)
	}
	query += ` ORDER BY j.start DESC LIMIT 1`

	var id int
	err := l.conn.QueryRow(query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		l.lastJobKnown = true
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last successful job: %w", err)
	}
	l.lastJobID = id
	l.lastJobKnown = true
	return id, true, nil
}

// Operations returns the entity/status pairs a stage produced in a given
// job, in insertion order. This is how one stage's output becomes the next
// stage's input.
func (l *Ledger) Operations(stage string, jobID int) ([]Operation, error) {
	return l.queryOperations(
		`SELECT entity, role, status, modified FROM operations
		 WHERE stage = ? AND job_id = ? ORDER BY id`,
		stage, jobID,
	)
}

// OperationsByRole is Operations restricted to one platform role.
func (l *Ledger) OperationsByRole(stage string, jobID int, role Role) ([]Operation, error) {
	return l.queryOperations(
		`SELECT entity, role, status, modified FROM operations
		 WHERE stage = ? AND job_id = ? AND role = ? ORDER BY id`,
		stage, jobID, int(role),
	)
}

func (l *Ledger) queryOperations(query string, args ...any) ([]Operation, error) {
	rows, err := l.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var role, status int
		var modified string
		if err := rows.Scan(&op.Entity, &role, &status, &modified); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Role = Role(role)
		op.Status = Status(status)
		if op.Modified, err = time.Parse(timeLayout, modified); err != nil {
			return nil, fmt.Errorf("parse operation timestamp: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LastKnownStatus looks up the entity's status for a stage in the last
// successful job. ok is false when the entity was never seen there, which
// the stage runner treats as "first run, must force".
func (l *Ledger) LastKnownStatus(stage, entity string) (Status, bool, error) {
	if !l.lastJobKnown || l.lastJobID == 0 {
		return 0, false, nil
	}
	var status int
	err := l.conn.QueryRow(
		`SELECT status FROM operations
		 WHERE job_id = ? AND stage = ? AND entity = ?
		 ORDER BY id DESC LIMIT 1`,
		l.lastJobID, stage, entity,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last status %s/%s: %w", stage, entity, err)
	}
	return Status(status), true, nil
}

// LastKnownOperation is LastKnownStatus with the full operation row,
// including the recorded modification timestamp.
func (l *Ledger) LastKnownOperation(stage, entity string) (Operation, bool, error) {
	if !l.lastJobKnown || l.lastJobID == 0 {
		return Operation{}, false, nil
	}
	var role, status int
	var modified string
	err := l.conn.QueryRow(
		`SELECT role, status, modified FROM operations
		 WHERE job_id = ? AND stage = ? AND entity = ?
		 ORDER BY id DESC LIMIT 1`,
		l.lastJobID, stage, entity,
	).Scan(&role, &status, &modified)
	if err == sql.ErrNoRows {
		return Operation{}, false, nil
	}
	if err != nil {
		return Operation{}, false, fmt.Errorf("query last operation %s/%s: %w", stage, entity, err)
	}
	op := Operation{Entity: entity, Role: Role(role), Status: Status(status)}
	if op.Modified, err = time.Parse(timeLayout, modified); err != nil {
		return Operation{}, false, fmt.Errorf("parse operation timestamp: %w", err)
	}
	return op, true, nil
}

// Jobs lists all jobs for the owning project, oldest first.
func (l *Ledger) Jobs() ([]Job, error) {
	rows, err := l.conn.Query(
		`SELECT id, project, start, end, success, reason, pid
		 FROM jobs WHERE project = ? ORDER BY id`,
		l.project,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var start string
		var end, reason sql.NullString
		var success sql.NullBool
		if err := rows.Scan(&j.ID, &j.Project, &start, &end, &success, &reason, &j.PID); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if j.Start, err = time.Parse(timeLayout, start); err != nil {
			return nil, fmt.Errorf("parse job start: %w", err)
		}
		if end.Valid {
			t, err := time.Parse(timeLayout, end.String)
			if err != nil {
				return nil, fmt.Errorf("parse job end: %w", err)
			}
			j.End = &t
		}
		if success.Valid {
			v := success.Bool
			j.Success = &v
		}
		if reason.Valid {
			j.Reason = reason.String
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job and its dependent operation rows.
func (l *Ledger) DeleteJob(jobID int) error {
	if _, err := l.conn.Exec(`DELETE FROM operations WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete operations for job %d: %w", jobID, err)
	}
	if _, err := l.conn.Exec(`DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("delete job %d: %w", jobID, err)
	}
	return nil
}

// DeleteAll removes every job and operation row.
func (l *Ledger) DeleteAll() error {
	if _, err := l.conn.Exec(`DELETE FROM operations`); err != nil {
		return fmt.Errorf("delete operations: %w", err)
	}
	if _, err := l.conn.Exec(`DELETE FROM jobs`); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}
