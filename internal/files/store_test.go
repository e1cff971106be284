package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestNewStoreCreatesLayout(t *testing.T) {
	root := t.TempDir()
	if _, err := NewStore(root); err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, dir := range []string{"drawings", "thumbnails"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", dir, err)
		}
	}
}

func TestSavePDFUsesOpaqueName(t *testing.T) {
	s := newTestStore(t)

	name, path, err := s.SavePDF([]byte("%PDF-1.7 test"), "Original Name.pdf")
	if err != nil {
		t.Fatalf("save pdf: %v", err)
	}
	if strings.Contains(name, "Original") {
		t.Fatalf("stored name leaks the upload name: %q", name)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Fatalf("stored name missing extension: %q", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "%PDF-1.7 test" {
		t.Fatalf("stored content mismatch: %q", data)
	}

	got, err := s.PDFPath(name)
	if err != nil {
		t.Fatalf("pdf path: %v", err)
	}
	if got != path {
		t.Fatalf("PDFPath = %q, want %q", got, path)
	}
}

func TestPDFPathMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.PDFPath("nope.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePDFIdempotent(t *testing.T) {
	s := newTestStore(t)
	name, _, err := s.SavePDF([]byte("x"), "a.pdf")
	if err != nil {
		t.Fatalf("save pdf: %v", err)
	}

	removed, err := s.DeletePDF(name)
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = s.DeletePDF(name)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestThumbnailPathComposition(t *testing.T) {
	s := newTestStore(t)

	primary := s.ThumbnailPath("abc123.pdf", 0)
	if filepath.Base(primary) != "abc123.png" {
		t.Fatalf("primary thumbnail = %q", primary)
	}
	page3 := s.ThumbnailPath("abc123.pdf", 3)
	if filepath.Base(page3) != "abc123_page3.png" {
		t.Fatalf("page thumbnail = %q", page3)
	}
}

func TestExportCopy(t *testing.T) {
	s := newTestStore(t)
	name, _, err := s.SavePDF([]byte("%PDF-1.7 body"), "a.pdf")
	if err != nil {
		t.Fatalf("save pdf: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "20240315093045_unclassified_unnumbered_alice.pdf")
	if err := s.ExportCopy(name, dest); err != nil {
		t.Fatalf("export copy: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "%PDF-1.7 body" {
		t.Fatalf("export content mismatch: %q err=%v", data, err)
	}

	// Never overwrites an existing target.
	if err := s.ExportCopy(name, dest); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
}

func TestExportCopyMissingSource(t *testing.T) {
	s := newTestStore(t)
	err := s.ExportCopy("ghost.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiskSpace(t *testing.T) {
	s := newTestStore(t)
	total, used, free, err := s.DiskSpace()
	if err != nil {
		t.Fatalf("disk space: %v", err)
	}
	if total == 0 || free > total || used > total {
		t.Fatalf("implausible disk figures: total=%d used=%d free=%d", total, used, free)
	}
}
