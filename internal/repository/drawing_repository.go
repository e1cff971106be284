package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/drawvault/internal/domain"
)

const drawingColumns = `id, pdf_filename, pdf_path, thumbnail_path, status,
	classification, classification_confidence, classification_reason,
	summary, shape_features, upload_date, approved_date, created_by, updated_at`

// editableFields maps user-editable field names onto drawing columns.
// Everything else is written by the extraction pipeline, not by hand.
var editableFields = map[string]struct{}{
	"classification":        {},
	"classification_reason": {},
	"summary":               {},
}

type drawingRepository struct {
	pool *pgxpool.Pool
}

// NewDrawingRepository creates a new drawing repository
func NewDrawingRepository(pool *pgxpool.Pool) DrawingRepository {
	return &drawingRepository{pool: pool}
}

// Create inserts a new drawing row
func (r *drawingRepository) Create(ctx context.Context, drawing domain.Drawing) (domain.Drawing, error) {
	featuresJSON, err := marshalFeatures(drawing.ShapeFeatures)
	if err != nil {
		return domain.Drawing{}, fmt.Errorf("marshal shape features: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO drawings (id, pdf_filename, pdf_path, thumbnail_path, status,
			classification, classification_confidence, classification_reason,
			summary, shape_features, upload_date, created_by, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, NULLIF($8, ''),
			NULLIF($9, ''), $10, $11, $12, $11)
		RETURNING `+drawingColumns,
		drawing.ID, drawing.PDFFilename, drawing.PDFPath, drawing.ThumbnailPath,
		drawing.Status, drawing.Classification, drawing.ClassificationConfidence,
		drawing.ClassificationReason, drawing.Summary, featuresJSON,
		drawing.UploadDate, drawing.CreatedBy,
	)

	created, err := scanDrawing(row)
	if err != nil {
		return domain.Drawing{}, fmt.Errorf("create drawing: %w", err)
	}
	return created, nil
}

// GetByID retrieves a drawing by ID
func (r *drawingRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Drawing, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+drawingColumns+` FROM drawings WHERE id = $1`, id)

	drawing, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Drawing{}, domain.ErrDrawingNotFound
		}
		return domain.Drawing{}, fmt.Errorf("get drawing: %w", err)
	}
	return drawing, nil
}

// List retrieves drawings ordered by upload date, newest first
func (r *drawingRepository) List(ctx context.Context, limit, offset int) ([]domain.Drawing, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+drawingColumns+`, COUNT(*) OVER() AS total_count
		FROM drawings
		ORDER BY upload_date DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()

	var drawings []domain.Drawing
	total := 0
	for rows.Next() {
		drawing, count, err := scanDrawingWithCount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan drawing: %w", err)
		}
		drawings = append(drawings, drawing)
		total = count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list drawings: %w", err)
	}
	return drawings, total, nil
}

// UpdateFields applies the changed fields and records one edit-history row
// per change, in one transaction. Unknown field names are rejected before
// anything is written, so a bad request leaves no partial state.
func (r *drawingRepository) UpdateFields(ctx context.Context, id uuid.UUID, userID string, changes map[string]string) (domain.Drawing, error) {
	for field := range changes {
		if _, ok := editableFields[field]; !ok {
			return domain.Drawing{}, fmt.Errorf("field %q is not editable", field)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Drawing{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+drawingColumns+` FROM drawings WHERE id = $1 FOR UPDATE`, id)
	current, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Drawing{}, domain.ErrDrawingNotFound
		}
		return domain.Drawing{}, fmt.Errorf("lock drawing row: %w", err)
	}

	oldValues := map[string]string{
		"classification":        current.Classification,
		"classification_reason": current.ClassificationReason,
		"summary":               current.Summary,
	}

	updated := current
	for field, newValue := range changes {
		oldValue := oldValues[field]
		if oldValue == newValue {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO edit_history (drawing_id, user_id, field_name, old_value, new_value)
			VALUES ($1, $2, $3, $4, $5)`,
			id, userID, field, oldValue, newValue); err != nil {
			return domain.Drawing{}, fmt.Errorf("append edit history: %w", err)
		}

		switch field {
		case "classification":
			updated.Classification = newValue
		case "classification_reason":
			updated.ClassificationReason = newValue
		case "summary":
			updated.Summary = newValue
		}
	}

	row = tx.QueryRow(ctx, `
		UPDATE drawings
		SET classification = NULLIF($2, ''),
			classification_reason = NULLIF($3, ''),
			summary = NULLIF($4, ''),
			updated_at = now()
		WHERE id = $1
		RETURNING `+drawingColumns,
		id, updated.Classification, updated.ClassificationReason, updated.Summary)

	result, err := scanDrawing(row)
	if err != nil {
		return domain.Drawing{}, fmt.Errorf("update drawing fields: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Drawing{}, fmt.Errorf("commit update: %w", err)
	}
	return result, nil
}

// UpdateStatus moves the drawing to the given status. approved_date is
// written only when stampApproved is set and never cleared afterwards.
func (r *drawingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, stampApproved bool) (domain.Drawing, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE drawings
		SET status = $2,
			approved_date = CASE WHEN $3 THEN now() ELSE approved_date END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+drawingColumns,
		id, status, stampApproved)

	drawing, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Drawing{}, domain.ErrDrawingNotFound
		}
		return domain.Drawing{}, fmt.Errorf("update drawing status: %w", err)
	}
	return drawing, nil
}

// SetAnalysisResults overwrites the pipeline-owned columns in one
// statement. User-editable columns travel the UpdateFields path instead,
// where edit history is appended.
func (r *drawingRepository) SetAnalysisResults(ctx context.Context, id uuid.UUID, results domain.AnalysisResults) (domain.Drawing, error) {
	featuresJSON, err := marshalFeatures(results.ShapeFeatures)
	if err != nil {
		return domain.Drawing{}, fmt.Errorf("marshal shape features: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE drawings
		SET classification = NULLIF($2, ''),
			classification_confidence = $3,
			classification_reason = NULLIF($4, ''),
			summary = NULLIF($5, ''),
			shape_features = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING `+drawingColumns,
		id, results.Classification, results.ClassificationConfidence,
		results.ClassificationReason, results.Summary, featuresJSON)

	drawing, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Drawing{}, domain.ErrDrawingNotFound
		}
		return domain.Drawing{}, fmt.Errorf("set analysis results: %w", err)
	}
	return drawing, nil
}

// SetThumbnailPath records the rendered thumbnail location
func (r *drawingRepository) SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE drawings SET thumbnail_path = $2, updated_at = now() WHERE id = $1`,
		id, thumbnailPath)
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDrawingNotFound
	}
	return nil
}

// Delete removes the drawing. Child rows (lock, edit history, tags,
// revisions, balloons, extracted fields) go with it via ON DELETE CASCADE.
func (r *drawingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM drawings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete drawing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDrawingNotFound
	}
	return nil
}

// ListEditHistory returns the append-only audit trail, oldest first
func (r *drawingRepository) ListEditHistory(ctx context.Context, drawingID uuid.UUID) ([]domain.EditHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drawing_id, user_id, field_name,
			COALESCE(old_value, ''), COALESCE(new_value, ''), timestamp
		FROM edit_history
		WHERE drawing_id = $1
		ORDER BY id`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list edit history: %w", err)
	}
	defer rows.Close()

	var entries []domain.EditHistory
	for rows.Next() {
		var e domain.EditHistory
		if err := rows.Scan(&e.ID, &e.DrawingID, &e.UserID, &e.FieldName,
			&e.OldValue, &e.NewValue, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan edit history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list edit history: %w", err)
	}
	return entries, nil
}

func marshalFeatures(features map[string]any) ([]byte, error) {
	if features == nil {
		return nil, nil
	}
	return json.Marshal(features)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row rowScanner) (domain.Drawing, error) {
	var (
		d            domain.Drawing
		thumbnail    *string
		class        *string
		classConf    *float64
		classReason  *string
		summary      *string
		featuresJSON []byte
	)
	err := row.Scan(&d.ID, &d.PDFFilename, &d.PDFPath, &thumbnail, &d.Status,
		&class, &classConf, &classReason, &summary, &featuresJSON,
		&d.UploadDate, &d.ApprovedDate, &d.CreatedBy, &d.UpdatedAt)
	if err != nil {
		return domain.Drawing{}, err
	}
	return finishDrawing(d, thumbnail, class, classConf, classReason, summary, featuresJSON)
}

func scanDrawingWithCount(row rowScanner) (domain.Drawing, int, error) {
	var (
		d            domain.Drawing
		thumbnail    *string
		class        *string
		classConf    *float64
		classReason  *string
		summary      *string
		featuresJSON []byte
		totalCount   int
	)
	err := row.Scan(&d.ID, &d.PDFFilename, &d.PDFPath, &thumbnail, &d.Status,
		&class, &classConf, &classReason, &summary, &featuresJSON,
		&d.UploadDate, &d.ApprovedDate, &d.CreatedBy, &d.UpdatedAt, &totalCount)
	if err != nil {
		return domain.Drawing{}, 0, err
	}
	drawing, err := finishDrawing(d, thumbnail, class, classConf, classReason, summary, featuresJSON)
	return drawing, totalCount, err
}

func finishDrawing(d domain.Drawing, thumbnail, class *string, classConf *float64, classReason, summary *string, featuresJSON []byte) (domain.Drawing, error) {
	if thumbnail != nil {
		d.ThumbnailPath = *thumbnail
	}
	if class != nil {
		d.Classification = *class
	}
	if classConf != nil {
		d.ClassificationConfidence = *classConf
	}
	if classReason != nil {
		d.ClassificationReason = *classReason
	}
	if summary != nil {
		d.Summary = *summary
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &d.ShapeFeatures); err != nil {
			return domain.Drawing{}, fmt.Errorf("unmarshal shape features: %w", err)
		}
	}
	return d, nil
}
