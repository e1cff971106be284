package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the review state of a drawing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusApproved   Status = "approved"
	StatusUnapproved Status = "unapproved"
	StatusFailed     Status = "failed"
)

// transitions lists the legal status edges. approved -> analyzing is the
// explicit reopen edge for authorized edits, not a distinct state.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAnalyzing},
	StatusAnalyzing:  {StatusApproved, StatusUnapproved, StatusFailed},
	StatusUnapproved: {StatusAnalyzing},
	StatusFailed:     {StatusAnalyzing},
	StatusApproved:   {StatusAnalyzing},
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusApproved, StatusUnapproved, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Drawing represents one uploaded engineering document and its review status.
type Drawing struct {
	ID                       uuid.UUID      `json:"id"`
	PDFFilename              string         `json:"pdf_filename"`
	PDFPath                  string         `json:"pdf_path"`
	ThumbnailPath            string         `json:"thumbnail_path,omitempty"`
	Status                   Status         `json:"status"`
	Classification           string         `json:"classification,omitempty"`
	ClassificationConfidence float64        `json:"classification_confidence,omitempty"`
	ClassificationReason     string         `json:"classification_reason,omitempty"`
	Summary                  string         `json:"summary,omitempty"`
	ShapeFeatures            map[string]any `json:"shape_features,omitempty"`
	UploadDate               time.Time      `json:"upload_date"`
	ApprovedDate             *time.Time     `json:"approved_date,omitempty"`
	CreatedBy                string         `json:"created_by"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// NewDrawing creates a drawing in the pending state.
func NewDrawing(pdfFilename, pdfPath, createdBy string) Drawing {
	now := time.Now()
	return Drawing{
		ID:          uuid.New(),
		PDFFilename: pdfFilename,
		PDFPath:     pdfPath,
		Status:      StatusPending,
		UploadDate:  now,
		CreatedBy:   createdBy,
		UpdatedAt:   now,
	}
}
