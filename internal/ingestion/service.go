package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/files"
	"github.com/rpattn/drawvault/internal/repository"
)

// rotationCorrector is what intake needs from the rotation decision
// engine.
type rotationCorrector interface {
	AutoCorrect(ctx context.Context, path string) (int, error)
}

// Request describes one uploaded drawing.
type Request struct {
	FileName  string
	CreatedBy string
	Data      io.Reader
}

// Summary reports the outcome of an intake.
type Summary struct {
	Drawing          domain.Drawing `json:"drawing"`
	DetectedRotation int            `json:"detected_rotation"`
}

// Service runs the intake pipeline: store the PDF under an opaque name,
// normalize its orientation, create the drawing record in pending.
type Service struct {
	store    *files.Store
	drawings repository.DrawingRepository
	rotation rotationCorrector
	log      *slog.Logger
}

// NewService wires the intake pipeline.
func NewService(store *files.Store, drawings repository.DrawingRepository, rotation rotationCorrector, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, drawings: drawings, rotation: rotation, log: log}
}

// Ingest stores and normalizes one uploaded PDF and registers it as a
// pending drawing. On any failure the stored file is removed again, so a
// failed intake leaves no trace.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	if !strings.EqualFold(filepath.Ext(req.FileName), ".pdf") {
		return Summary{}, fmt.Errorf("unsupported file type %q, expected .pdf", filepath.Ext(req.FileName))
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return Summary{}, fmt.Errorf("createdBy is required")
	}

	data, err := io.ReadAll(req.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("read upload: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return Summary{}, fmt.Errorf("%s is not a PDF document", req.FileName)
	}

	storedName, path, err := s.store.SavePDF(data, req.FileName)
	if err != nil {
		return Summary{}, err
	}

	angle, err := s.rotation.AutoCorrect(ctx, path)
	if err != nil {
		s.discard(storedName)
		return Summary{}, fmt.Errorf("normalize orientation: %w", err)
	}

	drawing, err := s.drawings.Create(ctx, domain.NewDrawing(storedName, path, req.CreatedBy))
	if err != nil {
		s.discard(storedName)
		return Summary{}, err
	}

	s.log.Info("drawing ingested",
		"drawing_id", drawing.ID, "file", req.FileName, "stored_as", storedName,
		"created_by", req.CreatedBy, "detected_rotation", angle)

	return Summary{Drawing: drawing, DetectedRotation: angle}, nil
}

func (s *Service) discard(storedName string) {
	if _, err := s.store.DeletePDF(storedName); err != nil {
		s.log.Error("failed to discard stored pdf after intake error",
			"file", storedName, "error", err)
	}
}
