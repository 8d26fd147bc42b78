package stage

import "fmt"

// DependencyError means a stage could not even be instantiated: a required
// external tool or configuration key is missing. Stages are non-optional in
// sequence, so this aborts the job while keeping earlier stages' committed
// ledger operations.
type DependencyError struct {
	Stage string
	Err   error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s dependency error: %v", e.Stage, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// CriticalError marks an internal consistency violation: a programming or
// configuration bug rather than a data problem. It always aborts the entire
// job and closes the job record with success=false.
type CriticalError struct {
	Stage string
	Msg   string
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("stage %s critical error: %s", e.Stage, e.Msg)
}
