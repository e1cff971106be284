package files

import (
	"encoding/json"
	"net/http"
)

// Handler exposes storage health over HTTP.
type Handler struct {
	store *Store
}

// NewHTTPHandler wraps the store with a status endpoint.
func NewHTTPHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Status serves GET /storage/status with the storage volume's disk
// figures, so operators can see capacity before uploads start failing.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	total, used, free, err := h.store.DiskSpace()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]uint64{
		"total_bytes": total,
		"used_bytes":  used,
		"free_bytes":  free,
	})
}
