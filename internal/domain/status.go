package domain

import "fmt"

// SyncStatus reflects the most recent sync attempt for a student.
type SyncStatus string

const (
	SyncPending   SyncStatus = "PENDING"
	SyncSyncing   SyncStatus = "SYNCING"
	SyncSucceeded SyncStatus = "SUCCEEDED"
	SyncFailed    SyncStatus = "FAILED"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncPending, SyncSyncing, SyncSucceeded, SyncFailed:
		return true
	}
	return false
}

// Transition validates a status change. A profile may re-enter SYNCING from
// any settled state; a profile that is SYNCING may only settle into SUCCEEDED
// or FAILED.
func (s SyncStatus) Transition(to SyncStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown sync status %q", to)
	}
	switch s {
	case SyncPending, SyncSucceeded, SyncFailed:
		if to == SyncSyncing {
			return nil
		}
	case SyncSyncing:
		if to == SyncSucceeded || to == SyncFailed {
			return nil
		}
	}
	return fmt.Errorf("invalid sync status transition %q -> %q", s, to)
}
