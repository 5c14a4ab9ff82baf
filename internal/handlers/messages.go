package handlers

import (
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/udpmon/internal/metrics"
	"github.com/eldtechnologies/udpmon/internal/models"
)

// MessageInfo represents a message in API responses. Data carries the
// decoded text when the payload is valid UTF-8, a hex dump otherwise.
type MessageInfo struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	ClientIP   string `json:"client_ip"`
	ClientPort uint16 `json:"client_port"`
	Data       string `json:"data"`
	DataSize   int64  `json:"data_size"`
}

// MessageListResponse represents the messages list response.
type MessageListResponse struct {
	Success  bool          `json:"success"`
	Count    int           `json:"count"`
	Messages []MessageInfo `json:"messages"`
}

// MessageResponse represents a single-message response.
type MessageResponse struct {
	Success bool        `json:"success"`
	Message MessageInfo `json:"message"`
}

// CountResponse represents the message count response.
type CountResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

func toMessageInfo(msg *models.Message) MessageInfo {
	data := ""
	if msg.DataText != nil {
		data = *msg.DataText
	} else {
		data = hex.EncodeToString(msg.Data)
	}

	return MessageInfo{
		ID:         msg.ID,
		Timestamp:  msg.Timestamp.UTC().Format(time.RFC3339Nano),
		ClientIP:   msg.ClientIP,
		ClientPort: msg.ClientPort,
		Data:       data,
		DataSize:   msg.DataSize,
	}
}

// ListMessages handles GET /messages with pagination and client filters.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}
	if limit > 1000 {
		limit = 1000
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil || o < 0 {
			h.Error(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = o
	}

	clientIP, clientPort, ok := clientFilters(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid client_port")
		return
	}

	messages, err := h.store.Query(r.Context(), limit, offset, clientIP, clientPort)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("query").Inc()
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	infos := make([]MessageInfo, len(messages))
	for i := range messages {
		infos[i] = toMessageInfo(&messages[i])
	}

	h.JSON(w, http.StatusOK, MessageListResponse{
		Success:  true,
		Count:    len(infos),
		Messages: infos,
	})
}

// CountMessages handles GET /messages/count.
func (h *Handler) CountMessages(w http.ResponseWriter, r *http.Request) {
	clientIP, clientPort, ok := clientFilters(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid client_port")
		return
	}

	count, err := h.store.Count(r.Context(), clientIP, clientPort)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("query").Inc()
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, CountResponse{Success: true, Count: count})
}

// GetMessage handles GET /messages/{id}.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	msg, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("query").Inc()
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if msg == nil {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}

	h.JSON(w, http.StatusOK, MessageResponse{Success: true, Message: toMessageInfo(msg)})
}
