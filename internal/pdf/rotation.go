package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/wudi/pdfkit/ir"
)

// Verdict is a rotation oracle's visually-inferred page rotation.
type Verdict struct {
	Rotation   int `json:"rotation"`   // 0, 90, 180 or 270
	Confidence int `json:"confidence"` // 0-100
}

// Oracle is the optional AI classifier consulted for a visual rotation
// verdict. Implementations may fail; the decision engine recovers from
// that by falling back to embedded metadata.
type Oracle interface {
	DetectRotation(ctx context.Context, path string, page int) (Verdict, error)
}

// rotationRewriter is what the engine needs from the atomic rewriter.
type rotationRewriter interface {
	RewriteRotation(ctx context.Context, path string, deltaDegrees int) error
}

// DefaultConfidenceThreshold is the cutoff above which an oracle verdict
// outranks the embedded metadata angle.
const DefaultConfidenceThreshold = 70

// DecisionEngine fuses the metadata-derived rotation and an optional
// oracle verdict into one corrective angle and applies it.
type DecisionEngine struct {
	rewriter  rotationRewriter
	oracle    Oracle // nil disables the oracle path
	threshold int
	log       *slog.Logger
}

// NewDecisionEngine builds an engine. oracle may be nil; threshold <= 0
// falls back to DefaultConfidenceThreshold.
func NewDecisionEngine(rewriter rotationRewriter, oracle Oracle, threshold int, log *slog.Logger) *DecisionEngine {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &DecisionEngine{rewriter: rewriter, oracle: oracle, threshold: threshold, log: log}
}

// AutoCorrect detects the rotation of the drawing at path and, when it is
// non-zero, rewrites the file back to upright by applying the negated
// angle. It returns the detected (pre-correction) angle.
//
// The decision is a hard cutoff: the oracle wins iff it produced a
// well-formed verdict with confidence at or above the threshold; in every
// other case, including oracle failure, the metadata angle wins.
// At most one file rewrite happens per call.
func (e *DecisionEngine) AutoCorrect(ctx context.Context, path string) (int, error) {
	metaAngle, err := ReadPageRotation(ctx, path, 0)
	if err != nil {
		return 0, err
	}

	chosen := metaAngle
	source := "metadata"

	if e.oracle != nil {
		verdict, oErr := e.oracle.DetectRotation(ctx, path, 0)
		switch {
		case oErr != nil:
			e.log.Warn("rotation oracle unavailable, falling back to metadata",
				"path", path, "error", oErr)
		case !verdict.wellFormed():
			e.log.Warn("rotation oracle returned malformed verdict, falling back to metadata",
				"path", path, "rotation", verdict.Rotation, "confidence", verdict.Confidence)
		case verdict.Confidence >= e.threshold:
			chosen = verdict.Rotation
			source = "oracle"
		default:
			e.log.Info("rotation oracle below confidence threshold, using metadata",
				"path", path, "confidence", verdict.Confidence, "threshold", e.threshold)
		}
	}

	e.log.Info("rotation decision",
		"path", path, "source", source, "angle", chosen, "metadata_angle", metaAngle)

	if chosen == 0 {
		return 0, nil
	}
	if err := e.rewriter.RewriteRotation(ctx, path, -chosen); err != nil {
		return 0, fmt.Errorf("correct rotation: %w", err)
	}
	return chosen, nil
}

func (v Verdict) wellFormed() bool {
	if v.Confidence < 0 || v.Confidence > 100 {
		return false
	}
	switch v.Rotation {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// ReadPageRotation returns the normalized /Rotate value embedded in the
// metadata of the given page (0-based).
func ReadPageRotation(ctx context.Context, path string, page int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("pdf not found: %w", err)
		}
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	doc, err := ir.NewDefault().Parse(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	if page < 0 || page >= len(doc.Pages) {
		return 0, fmt.Errorf("pdf has no page %d", page)
	}
	return NormalizeAngle(doc.Pages[page].Rotate), nil
}
