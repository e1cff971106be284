package domain

import (
	"time"

	"github.com/google/uuid"
)

// EditHistory is an immutable audit record of one field mutation on a
// drawing. Rows are append-only; they are removed only when the parent
// drawing is deleted.
type EditHistory struct {
	ID        int64     `json:"id"`
	DrawingID uuid.UUID `json:"drawing_id"`
	UserID    string    `json:"user_id"`
	FieldName string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Timestamp time.Time `json:"timestamp"`
}
