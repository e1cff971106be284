package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/lock"
	"github.com/rpattn/drawvault/internal/repository"
)

// fileStore is what drawing removal needs from the on-disk store.
type fileStore interface {
	DeletePDF(filename string) (bool, error)
	DeleteThumbnail(filename string, page int) (bool, error)
}

// Service drives a drawing's progression from intake to approval.
//
// Automated transitions (pending -> analyzing -> approved/unapproved/
// failed) come from the extraction pipeline and need no human lock.
// User-initiated transitions and field edits require the caller to hold
// the drawing's live edit lock.
type Service struct {
	drawings repository.DrawingRepository
	records  repository.RecordRepository
	locks    *lock.Manager
	store    fileStore
	log      *slog.Logger
}

// NewService wires the lifecycle service.
func NewService(drawings repository.DrawingRepository, records repository.RecordRepository, locks *lock.Manager, store fileStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{drawings: drawings, records: records, locks: locks, store: store, log: log}
}

// UpdateFields applies user-initiated field changes. The caller must hold
// the live edit lock; each changed field produces one edit-history entry
// in the same transaction as the mutation.
func (s *Service) UpdateFields(ctx context.Context, drawingID uuid.UUID, userID string, changes map[string]string) (domain.Drawing, error) {
	holds, err := s.locks.HolderIs(ctx, drawingID, userID)
	if err != nil {
		return domain.Drawing{}, err
	}
	if !holds {
		return domain.Drawing{}, domain.ErrNotLockHolder
	}

	updated, err := s.drawings.UpdateFields(ctx, drawingID, userID, changes)
	if err != nil {
		return domain.Drawing{}, err
	}
	s.log.Info("drawing fields updated",
		"drawing_id", drawingID, "user_id", userID, "fields", len(changes))
	return updated, nil
}

// BeginAnalysis is the pipeline's transition into analyzing. Legal from
// pending and from the resubmission states.
func (s *Service) BeginAnalysis(ctx context.Context, drawingID uuid.UUID) (domain.Drawing, error) {
	return s.transition(ctx, drawingID, domain.StatusAnalyzing)
}

// CompleteAnalysis is the pipeline's terminal transition out of analyzing.
// outcome must be approved, unapproved or failed. Entering approved stamps
// approved_date, once. results, when present, carries everything the
// pipeline extracted; it is persisted before the status flips so a
// completed drawing never lacks its records. Child-record sets replace
// whatever a previous run wrote.
func (s *Service) CompleteAnalysis(ctx context.Context, drawingID uuid.UUID, outcome domain.Status, results *domain.AnalysisResults) (domain.Drawing, error) {
	switch outcome {
	case domain.StatusApproved, domain.StatusUnapproved, domain.StatusFailed:
	default:
		return domain.Drawing{}, fmt.Errorf("%w: %s is not an analysis outcome", domain.ErrInvalidTransition, outcome)
	}

	current, err := s.drawings.GetByID(ctx, drawingID)
	if err != nil {
		return domain.Drawing{}, err
	}
	if !current.Status.CanTransition(outcome) {
		return domain.Drawing{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, outcome)
	}

	if results != nil {
		if err := s.applyResults(ctx, drawingID, *results); err != nil {
			return domain.Drawing{}, err
		}
	}

	stampApproved := outcome == domain.StatusApproved && current.ApprovedDate == nil
	updated, err := s.drawings.UpdateStatus(ctx, drawingID, outcome, stampApproved)
	if err != nil {
		return domain.Drawing{}, err
	}

	s.log.Info("drawing analysis completed",
		"drawing_id", drawingID, "outcome", outcome, "with_results", results != nil)
	return updated, nil
}

func (s *Service) applyResults(ctx context.Context, drawingID uuid.UUID, results domain.AnalysisResults) error {
	if _, err := s.drawings.SetAnalysisResults(ctx, drawingID, results); err != nil {
		return err
	}
	if results.ThumbnailPath != "" {
		if err := s.drawings.SetThumbnailPath(ctx, drawingID, results.ThumbnailPath); err != nil {
			return err
		}
	}
	if err := s.records.ReplaceTags(ctx, drawingID, results.Tags); err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	if err := s.records.ReplaceRevisions(ctx, drawingID, results.Revisions); err != nil {
		return fmt.Errorf("replace revisions: %w", err)
	}
	if err := s.records.ReplaceBalloons(ctx, drawingID, results.Balloons); err != nil {
		return fmt.Errorf("replace balloons: %w", err)
	}
	if err := s.records.ReplaceExtractedFields(ctx, drawingID, results.ExtractedFields); err != nil {
		return fmt.Errorf("replace extracted fields: %w", err)
	}
	return nil
}

// Delete removes a drawing, its child rows and its stored files. The
// caller must hold the live edit lock. The lock row itself goes with the
// drawing via cascade.
func (s *Service) Delete(ctx context.Context, drawingID uuid.UUID, userID string) error {
	holds, err := s.locks.HolderIs(ctx, drawingID, userID)
	if err != nil {
		return err
	}
	if !holds {
		return domain.ErrNotLockHolder
	}

	current, err := s.drawings.GetByID(ctx, drawingID)
	if err != nil {
		return err
	}
	if err := s.drawings.Delete(ctx, drawingID); err != nil {
		return err
	}

	// Row is gone; file removal failures are logged, not surfaced.
	if _, err := s.store.DeletePDF(current.PDFFilename); err != nil {
		s.log.Error("failed to remove stored pdf of deleted drawing",
			"drawing_id", drawingID, "file", current.PDFFilename, "error", err)
	}
	if _, err := s.store.DeleteThumbnail(current.PDFFilename, 0); err != nil {
		s.log.Error("failed to remove thumbnail of deleted drawing",
			"drawing_id", drawingID, "file", current.PDFFilename, "error", err)
	}

	s.log.Info("drawing deleted", "drawing_id", drawingID, "user_id", userID)
	return nil
}

// Resubmit returns an unapproved or failed drawing to analyzing on behalf
// of a user. Requires the live edit lock.
func (s *Service) Resubmit(ctx context.Context, drawingID uuid.UUID, userID string) (domain.Drawing, error) {
	return s.userTransition(ctx, drawingID, userID, domain.StatusAnalyzing)
}

// Reopen takes an approved drawing back to analyzing for an authorized
// edit. Requires the live edit lock. approved_date is left as stamped.
func (s *Service) Reopen(ctx context.Context, drawingID uuid.UUID, userID string) (domain.Drawing, error) {
	return s.userTransition(ctx, drawingID, userID, domain.StatusAnalyzing)
}

func (s *Service) userTransition(ctx context.Context, drawingID uuid.UUID, userID string, next domain.Status) (domain.Drawing, error) {
	holds, err := s.locks.HolderIs(ctx, drawingID, userID)
	if err != nil {
		return domain.Drawing{}, err
	}
	if !holds {
		return domain.Drawing{}, domain.ErrNotLockHolder
	}
	return s.transition(ctx, drawingID, next)
}

func (s *Service) transition(ctx context.Context, drawingID uuid.UUID, next domain.Status) (domain.Drawing, error) {
	current, err := s.drawings.GetByID(ctx, drawingID)
	if err != nil {
		return domain.Drawing{}, err
	}
	if !current.Status.CanTransition(next) {
		return domain.Drawing{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next)
	}

	stampApproved := next == domain.StatusApproved && current.ApprovedDate == nil
	updated, err := s.drawings.UpdateStatus(ctx, drawingID, next, stampApproved)
	if err != nil {
		return domain.Drawing{}, err
	}

	s.log.Info("drawing status changed",
		"drawing_id", drawingID, "from", current.Status, "to", next)
	return updated, nil
}

// History returns the append-only audit trail for a drawing.
func (s *Service) History(ctx context.Context, drawingID uuid.UUID) ([]domain.EditHistory, error) {
	return s.drawings.ListEditHistory(ctx, drawingID)
}
