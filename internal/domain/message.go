package domain

import "time"

// MessageKind classifies an entry in the chat log.
type MessageKind string

const (
	// KindUser is a message the learner typed.
	KindUser MessageKind = "user"
	// KindTutor is a tutor reply.
	KindTutor MessageKind = "tutor"
	// KindAssessmentOffer invites the learner to take an assessment on Topic.
	KindAssessmentOffer MessageKind = "assessment_offer"
	// KindAssessmentResult records the outcome of a graded assessment.
	KindAssessmentResult MessageKind = "assessment_result"
)

// ChatMessage is one entry of the append-only chat log.
type ChatMessage struct {
	ID        string      `json:"id,omitempty"`
	Kind      MessageKind `json:"type"`
	Content   string      `json:"content"`
	Topic     string      `json:"topic,omitempty"`
	Passed    bool        `json:"passed,omitempty"`
	CreatedAt time.Time   `json:"timestamp"`
}

// IsFromLearner reports whether the message was authored locally.
func (m ChatMessage) IsFromLearner() bool {
	return m.Kind == KindUser
}
