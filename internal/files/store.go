package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
)

var (
	// ErrNotFound is returned when a referenced stored file does not exist.
	ErrNotFound = errors.New("stored file not found")

	// ErrTargetExists is returned when a rename would overwrite an
	// existing file. The caller decides how to react; the store never
	// silently overwrites.
	ErrTargetExists = errors.New("rename target already exists")
)

// Store manages the on-disk layout for drawings and their thumbnails:
// <root>/drawings/<uuid>.<ext> and <root>/thumbnails/<stem>[_pageN].png.
// Stored names are opaque and UUID-based; human-readable names from
// ComposeName are used for export renames only.
type Store struct {
	root          string
	drawingsDir   string
	thumbnailsDir string
}

// NewStore creates the storage directories if needed and returns a store
// rooted at root.
func NewStore(root string) (*Store, error) {
	s := &Store{
		root:          root,
		drawingsDir:   filepath.Join(root, "drawings"),
		thumbnailsDir: filepath.Join(root, "thumbnails"),
	}
	for _, dir := range []string{s.drawingsDir, s.thumbnailsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// SavePDF writes an uploaded document under a fresh UUID-based name and
// returns the stored filename and its absolute path.
func (s *Store) SavePDF(data []byte, originalFilename string) (string, string, error) {
	ext := filepath.Ext(originalFilename)
	if ext == "" {
		ext = ".pdf"
	}
	name := uuid.New().String() + ext
	path := filepath.Join(s.drawingsDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("save pdf: %w", err)
	}
	return name, path, nil
}

// PDFPath returns the absolute path of a stored drawing, or ErrNotFound.
func (s *Store) PDFPath(filename string) (string, error) {
	path := filepath.Join(s.drawingsDir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	return path, nil
}

// DeletePDF removes a stored drawing. Returns false when the file was
// already gone; that is not an error.
func (s *Store) DeletePDF(filename string) (bool, error) {
	err := os.Remove(filepath.Join(s.drawingsDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete pdf: %w", err)
	}
	return true, nil
}

// ThumbnailPath composes the path of a page render. Page 0 is the primary
// thumbnail (<stem>.png); higher pages use the <stem>_page<N>.png form.
// Path composition only; rendering is done elsewhere.
func (s *Store) ThumbnailPath(storedFilename string, page int) string {
	stem := storedFilename[:len(storedFilename)-len(filepath.Ext(storedFilename))]
	if page <= 0 {
		return filepath.Join(s.thumbnailsDir, stem+".png")
	}
	return filepath.Join(s.thumbnailsDir, fmt.Sprintf("%s_page%d.png", stem, page))
}

// DeleteThumbnail removes a drawing's rendered thumbnail if present.
func (s *Store) DeleteThumbnail(storedFilename string, page int) (bool, error) {
	err := os.Remove(s.ThumbnailPath(storedFilename, page))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete thumbnail: %w", err)
	}
	return true, nil
}

// ExportCopy copies a stored drawing to destPath under its human-readable
// name. ErrNotFound when the source is missing, ErrTargetExists when the
// destination is already taken.
func (s *Store) ExportCopy(storedFilename, destPath string) error {
	src, err := s.PDFPath(storedFilename)
	if err != nil {
		return err
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, destPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat export target: %w", err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source pdf: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write export copy: %w", err)
	}
	return nil
}

// DiskSpace reports total, used and free bytes for the storage root.
func (s *Store) DiskSpace() (total, used, free uint64, err error) {
	usage, err := disk.Usage(s.root)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("disk usage: %w", err)
	}
	return usage.Total, usage.Used, usage.Free, nil
}
