package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a free-form label attached to a drawing.
type Tag struct {
	ID        int64     `json:"id"`
	DrawingID uuid.UUID `json:"drawing_id"`
	TagName   string    `json:"tag_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Revision is one row of a drawing's revision table block.
type Revision struct {
	ID              int64     `json:"id"`
	DrawingID       uuid.UUID `json:"drawing_id"`
	RevisionNumber  string    `json:"revision_number"`
	RevisionDate    string    `json:"revision_date"`
	RevisionContent string    `json:"revision_content"`
	Reviser         string    `json:"reviser"`
	Confidence      float64   `json:"confidence"`
}

// Balloon is a numbered part callout placed on the drawing sheet.
type Balloon struct {
	ID            int64     `json:"id"`
	DrawingID     uuid.UUID `json:"drawing_id"`
	BalloonNumber string    `json:"balloon_number"`
	PartName      string    `json:"part_name"`
	Quantity      int       `json:"quantity"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Confidence    float64   `json:"confidence"`
}

// ExtractedField is one title-block field pulled out of the drawing,
// with the extractor's confidence and the source coordinates.
type ExtractedField struct {
	ID          int64          `json:"id"`
	DrawingID   uuid.UUID      `json:"drawing_id"`
	FieldName   string         `json:"field_name"`
	FieldValue  string         `json:"field_value"`
	Confidence  float64        `json:"confidence"`
	Coordinates map[string]any `json:"coordinates,omitempty"`
}

// AnalysisResults is everything the extraction pipeline delivers when it
// finishes a drawing: the classification verdict, rendered thumbnail, and
// the full child-record sets. Child sets replace whatever a previous run
// wrote.
type AnalysisResults struct {
	ThumbnailPath            string           `json:"thumbnail_path,omitempty"`
	Classification           string           `json:"classification,omitempty"`
	ClassificationConfidence float64          `json:"classification_confidence,omitempty"`
	ClassificationReason     string           `json:"classification_reason,omitempty"`
	Summary                  string           `json:"summary,omitempty"`
	ShapeFeatures            map[string]any   `json:"shape_features,omitempty"`
	Tags                     []string         `json:"tags,omitempty"`
	Revisions                []Revision       `json:"revisions,omitempty"`
	Balloons                 []Balloon        `json:"balloons,omitempty"`
	ExtractedFields          []ExtractedField `json:"extracted_fields,omitempty"`
}
