package repository

import (
	"context"
	"time"

	"github.com/rpattn/drawvault/internal/domain"

	"github.com/google/uuid"
)

// DrawingRepository defines the interface for drawing operations
type DrawingRepository interface {
	Create(ctx context.Context, drawing domain.Drawing) (domain.Drawing, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Drawing, error)
	List(ctx context.Context, limit, offset int) ([]domain.Drawing, int, error)

	// UpdateFields applies user-initiated field changes and appends one
	// edit-history row per changed field, all in a single transaction.
	// Lock-holder checks happen in the lifecycle service, not here.
	UpdateFields(ctx context.Context, id uuid.UUID, userID string, changes map[string]string) (domain.Drawing, error)

	// UpdateStatus moves the drawing to status. stampApproved sets
	// approved_date, which happens exactly once, on the transition into
	// the approved state.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, stampApproved bool) (domain.Drawing, error)

	// SetAnalysisResults overwrites the pipeline-owned columns
	// (classification verdict, summary, shape features). Pipeline writes
	// are not user edits, so no edit-history rows are produced.
	SetAnalysisResults(ctx context.Context, id uuid.UUID, results domain.AnalysisResults) (domain.Drawing, error)

	SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListEditHistory(ctx context.Context, drawingID uuid.UUID) ([]domain.EditHistory, error)
}

// LockRepository is the persistence contract of the edit-lock protocol.
// TryUpsert is the single atomic check-and-write of the acquire path.
type LockRepository interface {
	// TryUpsert acquires or renews the lock for drawingID in one
	// conditional upsert. It succeeds when no row exists, when the
	// existing row belongs to userID, or when the existing row has
	// expired as of now. ok reports whether the row was written.
	TryUpsert(ctx context.Context, drawingID uuid.UUID, userID string, now, expiresAt time.Time) (domain.Lock, bool, error)

	// Get returns the current lock row, live or not. found is false when
	// no row exists.
	Get(ctx context.Context, drawingID uuid.UUID) (domain.Lock, bool, error)

	// DeleteIfHolder removes the row only when userID holds it and
	// reports whether a row was deleted.
	DeleteIfHolder(ctx context.Context, drawingID uuid.UUID, userID string) (bool, error)
}

// RecordRepository persists the extraction pipeline's child records. The
// pipeline rewrites whole sets per drawing, so writes are replace-set.
type RecordRepository interface {
	ReplaceTags(ctx context.Context, drawingID uuid.UUID, tagNames []string) error
	ListTags(ctx context.Context, drawingID uuid.UUID) ([]domain.Tag, error)

	ReplaceRevisions(ctx context.Context, drawingID uuid.UUID, revisions []domain.Revision) error
	ListRevisions(ctx context.Context, drawingID uuid.UUID) ([]domain.Revision, error)

	ReplaceBalloons(ctx context.Context, drawingID uuid.UUID, balloons []domain.Balloon) error
	ListBalloons(ctx context.Context, drawingID uuid.UUID) ([]domain.Balloon, error)

	ReplaceExtractedFields(ctx context.Context, drawingID uuid.UUID, fields []domain.ExtractedField) error
	ListExtractedFields(ctx context.Context, drawingID uuid.UUID) ([]domain.ExtractedField, error)
}
