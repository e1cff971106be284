package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/files"
	"github.com/rpattn/drawvault/internal/repository"
)

const registerSheet = "Drawings"

// drawingNumberField is the extracted title-block field used in export
// filenames.
const drawingNumberField = "drawing_number"

// Service produces human-consumable exports: the drawing register as a
// spreadsheet, and copies of stored PDFs under their readable names.
type Service struct {
	drawings  repository.DrawingRepository
	records   repository.RecordRepository
	store     *files.Store
	exportDir string
	pageSize  int
	now       func() time.Time
	log       *slog.Logger
}

// Option customizes the export service.
type Option func(*Service)

// WithExportDirectory sets where exported PDF copies land.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithPageSize sets how many drawings are fetched per page while
// streaming the register.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewService wires the export service.
func NewService(drawings repository.DrawingRepository, records repository.RecordRepository, store *files.Store, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		drawings:  drawings,
		records:   records,
		store:     store,
		exportDir: "exports",
		pageSize:  500,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteRegister writes the full drawing register as an .xlsx workbook.
func (s *Service) WriteRegister(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", registerSheet)

	headers := []string{"ID", "Stored File", "Status", "Classification",
		"Confidence", "Summary", "Uploaded", "Approved", "Created By"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("compose header cell: %w", err)
		}
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	rowIdx := 2
	for offset := 0; ; offset += s.pageSize {
		drawings, total, err := s.drawings.List(ctx, s.pageSize, offset)
		if err != nil {
			return err
		}
		for _, d := range drawings {
			if err := s.writeRegisterRow(f, rowIdx, d); err != nil {
				return err
			}
			rowIdx++
		}
		if offset+s.pageSize >= total || len(drawings) == 0 {
			break
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.log.Info("drawing register exported", "rows", rowIdx-2)
	return nil
}

func (s *Service) writeRegisterRow(f *excelize.File, row int, d domain.Drawing) error {
	approved := ""
	if d.ApprovedDate != nil {
		approved = d.ApprovedDate.Format(time.RFC3339)
	}
	values := []any{
		d.ID.String(), d.PDFFilename, string(d.Status), d.Classification,
		d.ClassificationConfidence, d.Summary,
		d.UploadDate.Format(time.RFC3339), approved, d.CreatedBy,
	}
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("compose cell: %w", err)
		}
		if err := f.SetCellValue(registerSheet, cell, value); err != nil {
			return fmt.Errorf("write register row: %w", err)
		}
	}
	return nil
}

// ExportPDF copies a drawing's stored PDF into the export directory under
// its human-readable composed name and returns the destination path.
// Fails with files.ErrTargetExists rather than overwriting a previous
// export.
func (s *Service) ExportPDF(ctx context.Context, drawingID uuid.UUID) (string, error) {
	drawing, err := s.drawings.GetByID(ctx, drawingID)
	if err != nil {
		return "", err
	}

	name := files.ComposeName(drawing.UploadDate, drawing.Classification,
		s.drawingNumber(ctx, drawingID), drawing.CreatedBy)
	dest := filepath.Join(s.exportDir, name)

	if err := s.store.ExportCopy(drawing.PDFFilename, dest); err != nil {
		return "", err
	}
	s.log.Info("drawing exported", "drawing_id", drawingID, "dest", dest)
	return dest, nil
}

func (s *Service) drawingNumber(ctx context.Context, drawingID uuid.UUID) string {
	fields, err := s.records.ListExtractedFields(ctx, drawingID)
	if err != nil {
		s.log.Warn("could not read extracted fields for export name",
			"drawing_id", drawingID, "error", err)
		return ""
	}
	for _, field := range fields {
		if field.FieldName == drawingNumberField {
			return field.FieldValue
		}
	}
	return ""
}
