package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eldtechnologies/udpmon/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store         store.MessageStore
	retentionDays float64 // default horizon for manual cleanup
}

// NewHandler creates a new Handler backed by the given store.
func NewHandler(st store.MessageStore, retentionDays float64) *Handler {
	return &Handler{store: st, retentionDays: retentionDays}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// clientFilters parses the optional client_ip/client_port query parameters.
// An absent client_port comes back as -1, which the store treats as "no
// filter". ok is false when client_port is not a valid port number.
func clientFilters(r *http.Request) (clientIP string, clientPort int, ok bool) {
	clientIP = r.URL.Query().Get("client_ip")
	clientPort = -1

	if portStr := r.URL.Query().Get("client_port"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 0 || p > 65535 {
			return "", 0, false
		}
		clientPort = p
	}
	return clientIP, clientPort, true
}
