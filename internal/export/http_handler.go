package export

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/files"
)

// Handler exposes register download and PDF export over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the export service.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register serves GET /export/register as an .xlsx attachment.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="drawings.xlsx"`)
	if err := h.service.WriteRegister(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// PDF serves POST /export/pdf?id=<uuid>.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid drawing id", http.StatusBadRequest)
		return
	}

	dest, err := h.service.ExportPDF(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDrawingNotFound), errors.Is(err, files.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, files.ErrTargetExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"path": dest})
}
