package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/drawvault/internal/domain"
)

type lockRepository struct {
	pool *pgxpool.Pool
}

// NewLockRepository creates a new lock repository
func NewLockRepository(pool *pgxpool.Pool) LockRepository {
	return &lockRepository{pool: pool}
}

// TryUpsert is the acquire path's single atomic check-and-write. The
// conditional upsert succeeds when no row exists for the drawing, when the
// existing row already belongs to userID (renewal), or when the existing
// row has expired as of now; a live row held by someone else leaves the
// table untouched and returns ok=false. Expired rows are reaped here, by
// being overwritten, rather than by a background sweeper.
func (r *lockRepository) TryUpsert(ctx context.Context, drawingID uuid.UUID, userID string, now, expiresAt time.Time) (domain.Lock, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO locks (drawing_id, user_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (drawing_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE locks.user_id = EXCLUDED.user_id OR locks.expires_at <= $3
		RETURNING drawing_id, user_id, acquired_at, expires_at`,
		drawingID, userID, now, expiresAt)

	var lock domain.Lock
	err := row.Scan(&lock.DrawingID, &lock.UserID, &lock.AcquiredAt, &lock.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Upsert condition rejected the write: a live lock is held
			// by another user.
			return domain.Lock{}, false, nil
		}
		return domain.Lock{}, false, fmt.Errorf("upsert lock: %w", err)
	}
	return lock, true, nil
}

// Get returns the lock row for the drawing regardless of liveness; the
// caller computes liveness from the timestamps.
func (r *lockRepository) Get(ctx context.Context, drawingID uuid.UUID) (domain.Lock, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT drawing_id, user_id, acquired_at, expires_at
		FROM locks WHERE drawing_id = $1`, drawingID)

	var lock domain.Lock
	err := row.Scan(&lock.DrawingID, &lock.UserID, &lock.AcquiredAt, &lock.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lock{}, false, nil
		}
		return domain.Lock{}, false, fmt.Errorf("get lock: %w", err)
	}
	return lock, true, nil
}

// DeleteIfHolder removes the lock only when userID is its current holder.
func (r *lockRepository) DeleteIfHolder(ctx context.Context, drawingID uuid.UUID, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM locks WHERE drawing_id = $1 AND user_id = $2`,
		drawingID, userID)
	if err != nil {
		return false, fmt.Errorf("delete lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
