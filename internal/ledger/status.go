package ledger

import "fmt"

// Status is the outcome of one (job, stage, entity) operation. The numeric
// codes are stored in the ledger and must stay stable across releases.
// The values form a total order: failed < rejected < deleted < unchanged <
// added < updated < forced.
type Status int

const (
	StatusFailed    Status = -3
	StatusRejected  Status = -2
	StatusDeleted   Status = -1
	StatusUnchanged Status = 0
	StatusAdded     Status = 1
	StatusUpdated   Status = 2
	StatusForced    Status = 3
)

var statusNames = map[Status]string{
	StatusFailed:    "failed",
	StatusRejected:  "rejected",
	StatusDeleted:   "deleted",
	StatusUnchanged: "unchanged",
	StatusAdded:     "added",
	StatusUpdated:   "updated",
	StatusForced:    "forced",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is one of the defined status codes.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether s marks an entity that must not be recomputed
// downstream: its response value flag is pinned to false.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusFailed
}

// AllStatuses lists every defined status in ledger order. Used for tally
// reporting.
func AllStatuses() []Status {
	return []Status{
		StatusFailed, StatusRejected, StatusDeleted,
		StatusUnchanged, StatusAdded, StatusUpdated, StatusForced,
	}
}

// Role classifies an entity's acquisition platform within a job.
type Role int

const (
	RoleUnknown       Role = 0
	RolePrimary       Role = 1
	RoleSupplementary Role = 2
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSupplementary:
		return "supplementary"
	default:
		return "unknown"
	}
}
