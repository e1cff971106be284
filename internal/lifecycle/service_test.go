package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/lock"
)

type fakeDrawingRepo struct {
	drawings map[uuid.UUID]domain.Drawing
	history  map[uuid.UUID][]domain.EditHistory

	updateFieldsErr error
}

func newFakeDrawingRepo() *fakeDrawingRepo {
	return &fakeDrawingRepo{
		drawings: map[uuid.UUID]domain.Drawing{},
		history:  map[uuid.UUID][]domain.EditHistory{},
	}
}

func (f *fakeDrawingRepo) put(d domain.Drawing) domain.Drawing {
	f.drawings[d.ID] = d
	return d
}

func (f *fakeDrawingRepo) Create(ctx context.Context, d domain.Drawing) (domain.Drawing, error) {
	return f.put(d), nil
}

func (f *fakeDrawingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Drawing, error) {
	d, ok := f.drawings[id]
	if !ok {
		return domain.Drawing{}, domain.ErrDrawingNotFound
	}
	return d, nil
}

func (f *fakeDrawingRepo) List(ctx context.Context, limit, offset int) ([]domain.Drawing, int, error) {
	out := make([]domain.Drawing, 0, len(f.drawings))
	for _, d := range f.drawings {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (f *fakeDrawingRepo) UpdateFields(ctx context.Context, id uuid.UUID, userID string, changes map[string]string) (domain.Drawing, error) {
	if f.updateFieldsErr != nil {
		return domain.Drawing{}, f.updateFieldsErr
	}
	d, ok := f.drawings[id]
	if !ok {
		return domain.Drawing{}, domain.ErrDrawingNotFound
	}
	for field, value := range changes {
		old := ""
		switch field {
		case "classification":
			old, d.Classification = d.Classification, value
		case "classification_reason":
			old, d.ClassificationReason = d.ClassificationReason, value
		case "summary":
			old, d.Summary = d.Summary, value
		}
		f.history[id] = append(f.history[id], domain.EditHistory{
			DrawingID: id,
			UserID:    userID,
			FieldName: field,
			OldValue:  old,
			NewValue:  value,
			Timestamp: time.Now(),
		})
	}
	return f.put(d), nil
}

func (f *fakeDrawingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, stampApproved bool) (domain.Drawing, error) {
	d, ok := f.drawings[id]
	if !ok {
		return domain.Drawing{}, domain.ErrDrawingNotFound
	}
	d.Status = status
	if stampApproved {
		now := time.Now()
		d.ApprovedDate = &now
	}
	return f.put(d), nil
}

func (f *fakeDrawingRepo) SetAnalysisResults(ctx context.Context, id uuid.UUID, results domain.AnalysisResults) (domain.Drawing, error) {
	d, ok := f.drawings[id]
	if !ok {
		return domain.Drawing{}, domain.ErrDrawingNotFound
	}
	d.Classification = results.Classification
	d.ClassificationConfidence = results.ClassificationConfidence
	d.ClassificationReason = results.ClassificationReason
	d.Summary = results.Summary
	d.ShapeFeatures = results.ShapeFeatures
	return f.put(d), nil
}

func (f *fakeDrawingRepo) SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	d, ok := f.drawings[id]
	if !ok {
		return domain.ErrDrawingNotFound
	}
	d.ThumbnailPath = thumbnailPath
	f.put(d)
	return nil
}

func (f *fakeDrawingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.drawings, id)
	delete(f.history, id)
	return nil
}

func (f *fakeDrawingRepo) ListEditHistory(ctx context.Context, drawingID uuid.UUID) ([]domain.EditHistory, error) {
	return f.history[drawingID], nil
}

// fakeRecordRepo records the replace-set writes of the pipeline.
type fakeRecordRepo struct {
	tags      map[uuid.UUID][]string
	revisions map[uuid.UUID][]domain.Revision
	balloons  map[uuid.UUID][]domain.Balloon
	fields    map[uuid.UUID][]domain.ExtractedField
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{
		tags:      map[uuid.UUID][]string{},
		revisions: map[uuid.UUID][]domain.Revision{},
		balloons:  map[uuid.UUID][]domain.Balloon{},
		fields:    map[uuid.UUID][]domain.ExtractedField{},
	}
}

func (f *fakeRecordRepo) ReplaceTags(ctx context.Context, drawingID uuid.UUID, tagNames []string) error {
	f.tags[drawingID] = tagNames
	return nil
}

func (f *fakeRecordRepo) ListTags(ctx context.Context, drawingID uuid.UUID) ([]domain.Tag, error) {
	var tags []domain.Tag
	for _, name := range f.tags[drawingID] {
		tags = append(tags, domain.Tag{DrawingID: drawingID, TagName: name})
	}
	return tags, nil
}

func (f *fakeRecordRepo) ReplaceRevisions(ctx context.Context, drawingID uuid.UUID, revisions []domain.Revision) error {
	f.revisions[drawingID] = revisions
	return nil
}

func (f *fakeRecordRepo) ListRevisions(ctx context.Context, drawingID uuid.UUID) ([]domain.Revision, error) {
	return f.revisions[drawingID], nil
}

func (f *fakeRecordRepo) ReplaceBalloons(ctx context.Context, drawingID uuid.UUID, balloons []domain.Balloon) error {
	f.balloons[drawingID] = balloons
	return nil
}

func (f *fakeRecordRepo) ListBalloons(ctx context.Context, drawingID uuid.UUID) ([]domain.Balloon, error) {
	return f.balloons[drawingID], nil
}

func (f *fakeRecordRepo) ReplaceExtractedFields(ctx context.Context, drawingID uuid.UUID, fields []domain.ExtractedField) error {
	f.fields[drawingID] = fields
	return nil
}

func (f *fakeRecordRepo) ListExtractedFields(ctx context.Context, drawingID uuid.UUID) ([]domain.ExtractedField, error) {
	return f.fields[drawingID], nil
}

// fakeFileStore records deletions the service asks for.
type fakeFileStore struct {
	deletedPDFs       []string
	deletedThumbnails []string
}

func (f *fakeFileStore) DeletePDF(filename string) (bool, error) {
	f.deletedPDFs = append(f.deletedPDFs, filename)
	return true, nil
}

func (f *fakeFileStore) DeleteThumbnail(filename string, page int) (bool, error) {
	f.deletedThumbnails = append(f.deletedThumbnails, filename)
	return true, nil
}

// fakeLockStore mirrors the conditional-upsert contract of the SQL lock
// repository.
type fakeLockStore struct {
	rows map[uuid.UUID]domain.Lock
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{rows: map[uuid.UUID]domain.Lock{}}
}

func (f *fakeLockStore) TryUpsert(ctx context.Context, drawingID uuid.UUID, userID string, now, expiresAt time.Time) (domain.Lock, bool, error) {
	if cur, ok := f.rows[drawingID]; ok && cur.UserID != userID && cur.LiveAt(now) {
		return domain.Lock{}, false, nil
	}
	l := domain.Lock{DrawingID: drawingID, UserID: userID, AcquiredAt: now, ExpiresAt: expiresAt}
	f.rows[drawingID] = l
	return l, true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, drawingID uuid.UUID) (domain.Lock, bool, error) {
	l, ok := f.rows[drawingID]
	return l, ok, nil
}

func (f *fakeLockStore) DeleteIfHolder(ctx context.Context, drawingID uuid.UUID, userID string) (bool, error) {
	if cur, ok := f.rows[drawingID]; ok && cur.UserID == userID {
		delete(f.rows, drawingID)
		return true, nil
	}
	return false, nil
}

type fixture struct {
	svc     *Service
	repo    *fakeDrawingRepo
	records *fakeRecordRepo
	store   *fakeFileStore
	locks   *lock.Manager
	drawing domain.Drawing
}

func newFixture(t *testing.T, status domain.Status) *fixture {
	t.Helper()
	repo := newFakeDrawingRepo()
	records := newFakeRecordRepo()
	store := &fakeFileStore{}
	locks := lock.NewManager(newFakeLockStore(), 300*time.Second, nil)

	d := domain.NewDrawing("abc.pdf", "/data/drawings/abc.pdf", "alice")
	d.Status = status
	repo.put(d)

	return &fixture{
		svc:     NewService(repo, records, locks, store, nil),
		repo:    repo,
		records: records,
		store:   store,
		locks:   locks,
		drawing: d,
	}
}

func (fx *fixture) lockAs(t *testing.T, userID string) {
	t.Helper()
	if _, err := fx.locks.Acquire(context.Background(), fx.drawing.ID, userID, 0); err != nil {
		t.Fatalf("acquire lock as %s: %v", userID, err)
	}
}

func TestUpdateFieldsRequiresLockHolder(t *testing.T) {
	fx := newFixture(t, domain.StatusUnapproved)
	changes := map[string]string{"classification": "P&ID"}

	_, err := fx.svc.UpdateFields(context.Background(), fx.drawing.ID, "alice", changes)
	if !errors.Is(err, domain.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder without a lock, got %v", err)
	}

	fx.lockAs(t, "bob")
	_, err = fx.svc.UpdateFields(context.Background(), fx.drawing.ID, "alice", changes)
	if !errors.Is(err, domain.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder while bob holds the lock, got %v", err)
	}
}

func TestUpdateFieldsRecordsHistory(t *testing.T) {
	fx := newFixture(t, domain.StatusUnapproved)
	fx.lockAs(t, "alice")

	updated, err := fx.svc.UpdateFields(context.Background(), fx.drawing.ID, "alice", map[string]string{
		"classification": "P&ID",
		"summary":        "pump schematic",
	})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if updated.Classification != "P&ID" || updated.Summary != "pump schematic" {
		t.Fatalf("fields not applied: %+v", updated)
	}

	history, err := fx.svc.History(context.Background(), fx.drawing.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected one history row per changed field, got %d", len(history))
	}
	for _, h := range history {
		if h.UserID != "alice" {
			t.Fatalf("history attributed to %s, want alice", h.UserID)
		}
	}
}

func TestBeginAnalysisFromPending(t *testing.T) {
	fx := newFixture(t, domain.StatusPending)

	updated, err := fx.svc.BeginAnalysis(context.Background(), fx.drawing.ID)
	if err != nil {
		t.Fatalf("begin analysis: %v", err)
	}
	if updated.Status != domain.StatusAnalyzing {
		t.Fatalf("expected analyzing, got %s", updated.Status)
	}
}

func TestCompleteAnalysisOutcomes(t *testing.T) {
	for _, outcome := range []domain.Status{domain.StatusApproved, domain.StatusUnapproved, domain.StatusFailed} {
		fx := newFixture(t, domain.StatusAnalyzing)
		updated, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, outcome, nil)
		if err != nil {
			t.Fatalf("complete analysis with %s: %v", outcome, err)
		}
		if updated.Status != outcome {
			t.Fatalf("expected %s, got %s", outcome, updated.Status)
		}
	}
}

func TestCompleteAnalysisRejectsNonOutcome(t *testing.T) {
	fx := newFixture(t, domain.StatusAnalyzing)
	for _, outcome := range []domain.Status{domain.StatusPending, domain.StatusAnalyzing, "archived"} {
		if _, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, outcome, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for outcome %q, got %v", outcome, err)
		}
	}
}

func TestApprovedDateStampedExactlyOnce(t *testing.T) {
	fx := newFixture(t, domain.StatusAnalyzing)

	approved, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovedDate == nil {
		t.Fatal("expected approved_date stamped on first approval")
	}
	first := *approved.ApprovedDate

	// Reopen, then approve again. The original stamp must survive.
	fx.lockAs(t, "alice")
	if _, err := fx.svc.Reopen(context.Background(), fx.drawing.ID, "alice"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reapproved, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, nil)
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if reapproved.ApprovedDate == nil || !reapproved.ApprovedDate.Equal(first) {
		t.Fatalf("approved_date changed on re-approval: %v -> %v", first, reapproved.ApprovedDate)
	}
}

func TestCompleteAnalysisPersistsResults(t *testing.T) {
	fx := newFixture(t, domain.StatusAnalyzing)

	results := &domain.AnalysisResults{
		ThumbnailPath:            "/data/thumbnails/abc.png",
		Classification:           "P&ID",
		ClassificationConfidence: 0.93,
		ClassificationReason:     "title block matches",
		Summary:                  "pump schematic",
		Tags:                     []string{"pump", "piping"},
		Revisions:                []domain.Revision{{RevisionNumber: "A", Reviser: "carol"}},
		Balloons:                 []domain.Balloon{{BalloonNumber: "1", PartName: "valve", Quantity: 2}},
		ExtractedFields: []domain.ExtractedField{
			{FieldName: "drawing_number", FieldValue: "DWG-001", Confidence: 0.99},
		},
	}

	updated, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, results)
	if err != nil {
		t.Fatalf("complete analysis with results: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", updated.Status)
	}
	if updated.Classification != "P&ID" || updated.Summary != "pump schematic" {
		t.Fatalf("classification not persisted: %+v", updated)
	}
	if updated.ThumbnailPath != "/data/thumbnails/abc.png" {
		t.Fatalf("thumbnail path not persisted: %+v", updated)
	}

	if got := fx.records.tags[fx.drawing.ID]; len(got) != 2 {
		t.Fatalf("expected 2 tags, got %v", got)
	}
	if got := fx.records.revisions[fx.drawing.ID]; len(got) != 1 || got[0].RevisionNumber != "A" {
		t.Fatalf("revisions not persisted: %v", got)
	}
	if got := fx.records.balloons[fx.drawing.ID]; len(got) != 1 || got[0].Quantity != 2 {
		t.Fatalf("balloons not persisted: %v", got)
	}
	fields, err := fx.records.ListExtractedFields(context.Background(), fx.drawing.ID)
	if err != nil {
		t.Fatalf("list extracted fields: %v", err)
	}
	if len(fields) != 1 || fields[0].FieldValue != "DWG-001" {
		t.Fatalf("extracted fields not persisted: %v", fields)
	}
}

func TestCompleteAnalysisResultsReplacePriorRun(t *testing.T) {
	fx := newFixture(t, domain.StatusAnalyzing)

	first := &domain.AnalysisResults{Tags: []string{"old-tag"}}
	if _, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusUnapproved, first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	fx.lockAs(t, "alice")
	if _, err := fx.svc.Resubmit(context.Background(), fx.drawing.ID, "alice"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	second := &domain.AnalysisResults{Tags: []string{"pump"}}
	if _, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	got := fx.records.tags[fx.drawing.ID]
	if len(got) != 1 || got[0] != "pump" {
		t.Fatalf("expected second run to replace tags, got %v", got)
	}
}

func TestCompleteAnalysisIllegalEdgeWritesNothing(t *testing.T) {
	fx := newFixture(t, domain.StatusPending)

	results := &domain.AnalysisResults{Tags: []string{"pump"}}
	_, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, results)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got := fx.records.tags[fx.drawing.ID]; len(got) != 0 {
		t.Fatalf("illegal transition must not persist records, got %v", got)
	}
}

func TestDeleteRequiresLock(t *testing.T) {
	fx := newFixture(t, domain.StatusUnapproved)

	if err := fx.svc.Delete(context.Background(), fx.drawing.ID, "alice"); !errors.Is(err, domain.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder, got %v", err)
	}
	if _, err := fx.repo.GetByID(context.Background(), fx.drawing.ID); err != nil {
		t.Fatalf("drawing should survive a denied delete: %v", err)
	}
}

func TestDeleteRemovesDrawingAndFiles(t *testing.T) {
	fx := newFixture(t, domain.StatusUnapproved)
	fx.lockAs(t, "alice")

	if err := fx.svc.Delete(context.Background(), fx.drawing.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fx.repo.GetByID(context.Background(), fx.drawing.ID); !errors.Is(err, domain.ErrDrawingNotFound) {
		t.Fatalf("expected drawing gone, got %v", err)
	}
	if len(fx.store.deletedPDFs) != 1 || fx.store.deletedPDFs[0] != "abc.pdf" {
		t.Fatalf("stored pdf not removed: %v", fx.store.deletedPDFs)
	}
	if len(fx.store.deletedThumbnails) != 1 {
		t.Fatalf("thumbnail not removed: %v", fx.store.deletedThumbnails)
	}
}

func TestResubmitRequiresLock(t *testing.T) {
	fx := newFixture(t, domain.StatusUnapproved)

	if _, err := fx.svc.Resubmit(context.Background(), fx.drawing.ID, "alice"); !errors.Is(err, domain.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder, got %v", err)
	}

	fx.lockAs(t, "alice")
	updated, err := fx.svc.Resubmit(context.Background(), fx.drawing.ID, "alice")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if updated.Status != domain.StatusAnalyzing {
		t.Fatalf("expected analyzing after resubmit, got %s", updated.Status)
	}
}

func TestReopenFromApproved(t *testing.T) {
	fx := newFixture(t, domain.StatusApproved)
	fx.lockAs(t, "alice")

	updated, err := fx.svc.Reopen(context.Background(), fx.drawing.ID, "alice")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if updated.Status != domain.StatusAnalyzing {
		t.Fatalf("expected analyzing after reopen, got %s", updated.Status)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	fx := newFixture(t, domain.StatusPending)

	_, err := fx.svc.CompleteAnalysis(context.Background(), fx.drawing.ID, domain.StatusApproved, nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending -> approved, got %v", err)
	}
}

func TestTransitionUnknownDrawing(t *testing.T) {
	fx := newFixture(t, domain.StatusPending)

	_, err := fx.svc.BeginAnalysis(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrDrawingNotFound) {
		t.Fatalf("expected ErrDrawingNotFound, got %v", err)
	}
}
