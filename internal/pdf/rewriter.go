package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/pdfkit/ir"
	"github.com/wudi/pdfkit/writer"
)

// ErrReplaceExhausted is returned when the final replace step keeps failing
// past the configured retry budget. The original file is left as it was.
var ErrReplaceExhausted = errors.New("file replace retries exhausted")

// NormalizeAngle maps any 90-degree multiple onto {0, 90, 180, 270}.
func NormalizeAngle(deg int) int {
	return ((deg % 360) + 360) % 360
}

// Rewriter rewrites a PDF's page orientation in place, crash-safely.
//
// The rotated document is written in full to a temp file in the same
// directory, then moved over the original. Readers either see the old file
// or the new one, never a partial write; on any failure the temp file is
// removed and the original is untouched.
type Rewriter struct {
	attempts  int
	baseDelay time.Duration
	log       *slog.Logger
}

// NewRewriter configures the rewriter. attempts bounds the replace retry
// loop and baseDelay seeds its exponential backoff; tests run with a zero
// delay.
func NewRewriter(attempts int, baseDelay time.Duration, log *slog.Logger) *Rewriter {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{attempts: attempts, baseDelay: baseDelay, log: log}
}

// RewriteRotation applies a relative rotation (a multiple of 90 degrees,
// normalized modulo 360) to every page of the PDF at path, replacing the
// file atomically. A normalized delta of 0 is a no-op.
func (r *Rewriter) RewriteRotation(ctx context.Context, path string, deltaDegrees int) error {
	delta := NormalizeAngle(deltaDegrees)
	if delta == 0 {
		return nil
	}
	if delta%90 != 0 {
		return fmt.Errorf("rotation %d is not a multiple of 90 degrees", deltaDegrees)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("pdf not found: %w", err)
		}
		return fmt.Errorf("open pdf: %w", err)
	}

	doc, err := ir.NewDefault().Parse(ctx, f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}

	for _, page := range doc.Pages {
		page.Rotate = NormalizeAngle(page.Rotate + delta)
	}

	// Temp file in the same directory so the final move stays on one
	// filesystem and can be a single rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rotate-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	wb := &writer.WriterBuilder{}
	if err := wb.Build().Write(ctx, doc, tmp, writer.Config{Version: writer.PDF17}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write rotated pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := r.replace(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// replace moves tmpPath over path, retrying with exponential backoff to
// absorb transient handle contention on platforms with delayed release.
func (r *Rewriter) replace(tmpPath, path string) error {
	delay := r.baseDelay
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = os.Rename(tmpPath, path)
		if lastErr == nil {
			return nil
		}

		// Rename over an existing target fails on some platforms; drop
		// the original first and retry.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.Warn("remove original before replace failed",
				"path", path, "error", rmErr)
			continue
		}
		if lastErr = os.Rename(tmpPath, path); lastErr == nil {
			return nil
		}
		r.log.Warn("replace attempt failed",
			"path", path, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrReplaceExhausted, r.attempts, lastErr)
}
