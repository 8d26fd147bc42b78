package ledger

import "testing"

func TestStatusCodesStable(t *testing.T) {
	// The numeric codes are persisted; a change here breaks old ledgers.
	want := map[Status]int{
		StatusFailed:    -3,
		StatusRejected:  -2,
		StatusDeleted:   -1,
		StatusUnchanged: 0,
		StatusAdded:     1,
		StatusUpdated:   2,
		StatusForced:    3,
	}
	for s, code := range want {
		if int(s) != code {
			t.Errorf("%s = %d, want %d", s, int(s), code)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range AllStatuses() {
		terminal := s == StatusRejected || s == StatusFailed
		if s.Terminal() != terminal {
			t.Errorf("%s.Terminal() = %v", s, s.Terminal())
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses() {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status(42).Valid() {
		t.Error("status 42 should be invalid")
	}
	if got := Status(42).String(); got != "status(42)" {
		t.Errorf("String() = %q", got)
	}
}
