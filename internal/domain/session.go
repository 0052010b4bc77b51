// Package domain contains core domain types for the tutor client.
package domain

import (
	"strconv"
	"time"
)

// Session is the signed-in identity the controller works on behalf of.
type Session struct {
	UserID    string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the session carries enough identity to connect.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.Token != ""
}

// ConversationSummary is a past chat as listed by the conversation service.
type ConversationSummary struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Topic       string        `json:"topic"`
	Timestamp   string        `json:"timestamp"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
}

// DisplayTitle returns the title, or a positional fallback when the service
// did not provide one.
func (c ConversationSummary) DisplayTitle(index int) string {
	if c.Title != "" {
		return c.Title
	}
	return "Conversation " + strconv.Itoa(index+1)
}

// Analytics is the learner summary returned by the analytics service.
type Analytics struct {
	TotalLessons     int     `json:"total_lessons"`
	AssessmentsTaken int     `json:"assessments_taken"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`
}
