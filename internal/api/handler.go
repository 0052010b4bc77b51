// Package api holds the tutor service's REST surface: the client the
// controller uses for the conversation and analytics collaborators, and the
// JSON response helpers the stub server serves them with.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/tutor-client/internal/domain"
)

// ConversationsResponse is the body of GET /api/conversations/{userID}.
type ConversationsResponse struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
