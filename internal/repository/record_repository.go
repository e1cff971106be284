package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/drawvault/internal/domain"
)

type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a repository for the extraction pipeline's
// child records (tags, revisions, balloons, extracted fields).
func NewRecordRepository(pool *pgxpool.Pool) RecordRepository {
	return &recordRepository{pool: pool}
}

func (r *recordRepository) replaceSet(ctx context.Context, drawingID uuid.UUID, table string, insert func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE drawing_id = $1`, drawingID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace %s: %w", table, err)
	}
	return nil
}

func (r *recordRepository) ReplaceTags(ctx context.Context, drawingID uuid.UUID, tagNames []string) error {
	return r.replaceSet(ctx, drawingID, "tags", func(tx pgx.Tx) error {
		for _, name := range tagNames {
			if _, err := tx.Exec(ctx,
				`INSERT INTO tags (drawing_id, tag_name) VALUES ($1, $2)`,
				drawingID, name); err != nil {
				return fmt.Errorf("insert tag: %w", err)
			}
		}
		return nil
	})
}

func (r *recordRepository) ListTags(ctx context.Context, drawingID uuid.UUID) ([]domain.Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drawing_id, tag_name, created_at
		FROM tags WHERE drawing_id = $1 ORDER BY id`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.DrawingID, &t.TagName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *recordRepository) ReplaceRevisions(ctx context.Context, drawingID uuid.UUID, revisions []domain.Revision) error {
	return r.replaceSet(ctx, drawingID, "revisions", func(tx pgx.Tx) error {
		for _, rev := range revisions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO revisions (drawing_id, revision_number, revision_date,
					revision_content, reviser, confidence)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				drawingID, rev.RevisionNumber, rev.RevisionDate,
				rev.RevisionContent, rev.Reviser, rev.Confidence); err != nil {
				return fmt.Errorf("insert revision: %w", err)
			}
		}
		return nil
	})
}

func (r *recordRepository) ListRevisions(ctx context.Context, drawingID uuid.UUID) ([]domain.Revision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drawing_id, COALESCE(revision_number, ''), COALESCE(revision_date, ''),
			COALESCE(revision_content, ''), COALESCE(reviser, ''), COALESCE(confidence, 0)
		FROM revisions WHERE drawing_id = $1 ORDER BY id`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revisions []domain.Revision
	for rows.Next() {
		var rev domain.Revision
		if err := rows.Scan(&rev.ID, &rev.DrawingID, &rev.RevisionNumber,
			&rev.RevisionDate, &rev.RevisionContent, &rev.Reviser, &rev.Confidence); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

func (r *recordRepository) ReplaceBalloons(ctx context.Context, drawingID uuid.UUID, balloons []domain.Balloon) error {
	return r.replaceSet(ctx, drawingID, "balloons", func(tx pgx.Tx) error {
		for _, b := range balloons {
			if _, err := tx.Exec(ctx, `
				INSERT INTO balloons (drawing_id, balloon_number, part_name,
					quantity, x, y, confidence)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				drawingID, b.BalloonNumber, b.PartName, b.Quantity,
				b.X, b.Y, b.Confidence); err != nil {
				return fmt.Errorf("insert balloon: %w", err)
			}
		}
		return nil
	})
}

func (r *recordRepository) ListBalloons(ctx context.Context, drawingID uuid.UUID) ([]domain.Balloon, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drawing_id, COALESCE(balloon_number, ''), COALESCE(part_name, ''),
			COALESCE(quantity, 0), COALESCE(x, 0), COALESCE(y, 0), COALESCE(confidence, 0)
		FROM balloons WHERE drawing_id = $1 ORDER BY id`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list balloons: %w", err)
	}
	defer rows.Close()

	var balloons []domain.Balloon
	for rows.Next() {
		var b domain.Balloon
		if err := rows.Scan(&b.ID, &b.DrawingID, &b.BalloonNumber, &b.PartName,
			&b.Quantity, &b.X, &b.Y, &b.Confidence); err != nil {
			return nil, fmt.Errorf("scan balloon: %w", err)
		}
		balloons = append(balloons, b)
	}
	return balloons, rows.Err()
}

func (r *recordRepository) ReplaceExtractedFields(ctx context.Context, drawingID uuid.UUID, fields []domain.ExtractedField) error {
	return r.replaceSet(ctx, drawingID, "extracted_fields", func(tx pgx.Tx) error {
		for _, f := range fields {
			var coords []byte
			if f.Coordinates != nil {
				var err error
				if coords, err = json.Marshal(f.Coordinates); err != nil {
					return fmt.Errorf("marshal field coordinates: %w", err)
				}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO extracted_fields (drawing_id, field_name, field_value,
					confidence, coordinates)
				VALUES ($1, $2, $3, $4, $5)`,
				drawingID, f.FieldName, f.FieldValue, f.Confidence, coords); err != nil {
				return fmt.Errorf("insert extracted field: %w", err)
			}
		}
		return nil
	})
}

func (r *recordRepository) ListExtractedFields(ctx context.Context, drawingID uuid.UUID) ([]domain.ExtractedField, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drawing_id, field_name, COALESCE(field_value, ''),
			COALESCE(confidence, 0), coordinates
		FROM extracted_fields WHERE drawing_id = $1 ORDER BY id`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list extracted fields: %w", err)
	}
	defer rows.Close()

	var fields []domain.ExtractedField
	for rows.Next() {
		var (
			f      domain.ExtractedField
			coords []byte
		)
		if err := rows.Scan(&f.ID, &f.DrawingID, &f.FieldName, &f.FieldValue,
			&f.Confidence, &coords); err != nil {
			return nil, fmt.Errorf("scan extracted field: %w", err)
		}
		if len(coords) > 0 {
			if err := json.Unmarshal(coords, &f.Coordinates); err != nil {
				return nil, fmt.Errorf("unmarshal field coordinates: %w", err)
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
