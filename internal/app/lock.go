package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pinpal/api/internal/store"
)

// lockStore is the slice of the data store the lock manager needs.
type lockStore interface {
	GetBoard(ctx context.Context, boardID int64) (store.Board, error)
	GetUserByID(ctx context.Context, userID int64) (store.User, error)
	TryLockBoard(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error)
	UnlockBoard(ctx context.Context, boardID int64) error
}

// lockManager hands out the board-wide edit lock. Acquisition goes
// through a single conditional update in the store, so two racing
// writers can never both win. A lock older than the timeout counts as
// released; the holder can always renew its own lock.
type lockManager struct {
	store   lockStore
	timeout time.Duration
	now     func() time.Time
}

func newLockManager(store lockStore, timeout time.Duration) *lockManager {
	return &lockManager{
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// AcquireOrRenew takes the lock for userID or renews it if userID
// already holds it. When another user holds a live lock, the returned
// error is a 423 naming that user.
func (m *lockManager) AcquireOrRenew(ctx context.Context, boardID, userID int64) error {
	for attempt := 0; attempt < 2; attempt++ {
		now := m.now()
		ok, err := m.store.TryLockBoard(ctx, boardID, userID, now, now.Add(-m.timeout))
		if err != nil {
			return fmt.Errorf("acquire board lock: %w", err)
		}
		if ok {
			return nil
		}

		// Lost the race. Find out who holds the lock for the
		// conflict message. The holder may have released in the
		// meantime, in which case another attempt is fair.
		board, err := m.store.GetBoard(ctx, boardID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("Board not found.")
		}
		if err != nil {
			return fmt.Errorf("read contested board: %w", err)
		}
		if board.LockedForEditingByID == nil || *board.LockedForEditingByID == userID {
			continue
		}
		holder, err := m.store.GetUserByID(ctx, *board.LockedForEditingByID)
		if err != nil {
			return fmt.Errorf("read lock holder: %w", err)
		}
		return lockConflictError(holder.DisplayName)
	}
	return lockConflictError("another user")
}

// Release clears the lock unconditionally. Erase and failed draws
// release regardless of who holds the lock.
func (m *lockManager) Release(ctx context.Context, boardID int64) error {
	if err := m.store.UnlockBoard(ctx, boardID); err != nil {
		return fmt.Errorf("release board lock: %w", err)
	}
	return nil
}
