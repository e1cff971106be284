package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/repository"
)

// DefaultTTL bounds a lock's lifetime when the caller does not ask for a
// specific TTL.
const DefaultTTL = 300 * time.Second

// HeldError is the denial result of Acquire: a live lock is held by
// another user. It carries enough context for a meaningful conflict
// message.
type HeldError struct {
	Holder    string
	Remaining time.Duration
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("drawing is locked by %s for another %s", e.Holder, e.Remaining.Round(time.Second))
}

// Status describes a live lock as seen by IsLocked.
type Status struct {
	Holder    string        `json:"holder"`
	Remaining time.Duration `json:"remaining"`
}

// Manager grants, releases and inspects the single exclusive edit lock per
// drawing. Liveness is always computed as now < expires_at at the moment
// of the call; there is no cached locked flag to drift, and an abandoned
// lock self-heals on the next acquisition once its TTL has elapsed.
type Manager struct {
	locks      repository.LockRepository
	defaultTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewManager builds a lock manager. defaultTTL <= 0 falls back to
// DefaultTTL.
func NewManager(locks repository.LockRepository, defaultTTL time.Duration, log *slog.Logger) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		locks:      locks,
		defaultTTL: defaultTTL,
		now:        time.Now,
		log:        log,
	}
}

// Acquire grants or renews the edit lock on a drawing. It fails fast with
// a *HeldError when another user holds a live lock; it never blocks
// waiting for the lock to free. The check-and-write is one atomic store
// operation, so two concurrent acquisitions cannot both succeed.
func (m *Manager) Acquire(ctx context.Context, drawingID uuid.UUID, userID string, ttl time.Duration) (domain.Lock, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()

	lock, ok, err := m.locks.TryUpsert(ctx, drawingID, userID, now, now.Add(ttl))
	if err != nil {
		return domain.Lock{}, fmt.Errorf("acquire lock: %w", err)
	}
	if ok {
		m.log.Info("lock acquired",
			"drawing_id", drawingID, "user_id", userID, "expires_at", lock.ExpiresAt)
		return lock, nil
	}

	current, found, err := m.locks.Get(ctx, drawingID)
	if err != nil {
		return domain.Lock{}, fmt.Errorf("acquire lock: %w", err)
	}
	if found && current.LiveAt(now) {
		return domain.Lock{}, &HeldError{
			Holder:    current.UserID,
			Remaining: current.Remaining(now),
		}
	}

	// The holder released or expired between the upsert and the read;
	// one more attempt settles it.
	lock, ok, err = m.locks.TryUpsert(ctx, drawingID, userID, now, now.Add(ttl))
	if err != nil {
		return domain.Lock{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		current, found, err := m.locks.Get(ctx, drawingID)
		if err != nil {
			return domain.Lock{}, fmt.Errorf("acquire lock: %w", err)
		}
		if !found {
			// Denied, yet no row to report: the lock flipped again
			// between the retry and this read.
			return domain.Lock{}, fmt.Errorf("acquire lock: lost race for drawing %s", drawingID)
		}
		return domain.Lock{}, &HeldError{
			Holder:    current.UserID,
			Remaining: current.Remaining(m.now()),
		}
	}
	return lock, nil
}

// Release drops the lock if userID holds it. Releasing a lock you do not
// hold is treated as already-released, not an error.
func (m *Manager) Release(ctx context.Context, drawingID uuid.UUID, userID string) error {
	deleted, err := m.locks.DeleteIfHolder(ctx, drawingID, userID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if deleted {
		m.log.Info("lock released", "drawing_id", drawingID, "user_id", userID)
	}
	return nil
}

// IsLocked reports the current holder and remaining TTL, or nil when the
// drawing is unlocked. Uses the same liveness computation as Acquire.
func (m *Manager) IsLocked(ctx context.Context, drawingID uuid.UUID) (*Status, error) {
	lock, found, err := m.locks.Get(ctx, drawingID)
	if err != nil {
		return nil, fmt.Errorf("check lock: %w", err)
	}
	now := m.now()
	if !found || !lock.LiveAt(now) {
		return nil, nil
	}
	return &Status{Holder: lock.UserID, Remaining: lock.Remaining(now)}, nil
}

// HolderIs reports whether userID currently holds a live lock on the
// drawing. The lifecycle service uses this as its transition guard.
func (m *Manager) HolderIs(ctx context.Context, drawingID uuid.UUID, userID string) (bool, error) {
	status, err := m.IsLocked(ctx, drawingID)
	if err != nil {
		return false, err
	}
	return status != nil && status.Holder == userID, nil
}
