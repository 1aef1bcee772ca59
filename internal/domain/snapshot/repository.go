package snapshot

import (
	"context"
	"time"
)

// Repository is the append-only snapshot history
type Repository interface {
	Create(ctx context.Context, snapshot *Snapshot) error
	GetLatest(ctx context.Context, segregatedAccountID string) (*Snapshot, error)
	GetByTimeRange(ctx context.Context, segregatedAccountID string, start, end time.Time, limit, offset int) ([]*Snapshot, error)
}

// ErrSnapshotNotFound indicates no snapshot exists for a grouping
type ErrSnapshotNotFound struct {
	SegregatedAccountID string
}

func (e ErrSnapshotNotFound) Error() string {
	return "balance snapshot not found: " + e.SegregatedAccountID
}

// Is implements the errors.Is interface for ErrSnapshotNotFound
func (e ErrSnapshotNotFound) Is(target error) bool {
	t, ok := target.(ErrSnapshotNotFound)
	if !ok {
		return false
	}
	return t.SegregatedAccountID == "" || t.SegregatedAccountID == e.SegregatedAccountID
}
