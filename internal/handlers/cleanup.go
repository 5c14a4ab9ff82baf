package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eldtechnologies/udpmon/internal/metrics"
	"github.com/eldtechnologies/udpmon/internal/store"
)

// CleanupResponse represents the manual cleanup response.
type CleanupResponse struct {
	Success       bool    `json:"success"`
	DeletedCount  int64   `json:"deleted_count"`
	RetentionDays float64 `json:"retention_days"`
}

// Cleanup handles POST /cleanup, deleting messages older than the given
// number of days (defaults to the configured retention).
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := h.retentionDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.ParseFloat(daysStr, 64)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid days value")
			return
		}
		days = d
	}

	deleted, err := h.store.DeleteOlderThan(r.Context(), days)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRetention) {
			h.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		metrics.StorageErrors.WithLabelValues("delete").Inc()
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if deleted > 0 {
		metrics.MessagesPurged.Add(float64(deleted))
	}

	h.JSON(w, http.StatusOK, CleanupResponse{
		Success:       true,
		DeletedCount:  deleted,
		RetentionDays: days,
	})
}
