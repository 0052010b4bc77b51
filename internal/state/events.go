package state

import (
	"time"

	"github.com/ashureev/tutor-client/internal/domain"
)

// Event is one input to Reduce. The set is closed: only types in this file
// implement it.
type Event interface {
	event()
}

// Session lifecycle.
type (
	// LoggedIn installs a session and shows the dashboard.
	LoggedIn struct{ Session domain.Session }
	// LoggedOut discards everything and returns to the login view.
	LoggedOut struct{}
	// ConnectionChanged mirrors the transport's open/not-open state.
	ConnectionChanged struct{ Open bool }
)

// Learner actions.
type (
	// ChatSent records a chat message that was handed to the transport.
	ChatSent struct{ Message domain.ChatMessage }
	// SendUndelivered records a deferred chat message that was dropped.
	SendUndelivered struct {
		Content string
		At      time.Time
	}
	// AssessmentRequested records a start_assessment frame that was sent.
	AssessmentRequested struct{ Topic string }
	// AnswerChosen upserts one answer.
	AnswerChosen struct{ QuestionID, Option string }
	// AssessmentSubmitted records a submit_assessment frame that was sent.
	AssessmentSubmitted struct{}
	// AssessmentLeft abandons the assessment in progress.
	AssessmentLeft struct{}
	// ResultAcknowledged leaves the result screen.
	ResultAcknowledged struct{}
	// ConversationCleared starts a new, empty conversation.
	ConversationCleared struct{}
	// ConversationOpened replaces the log with a past transcript.
	ConversationOpened struct{ Conversation domain.ConversationSummary }
	// ConversationsRequested marks the conversation list as loading.
	ConversationsRequested struct{}
	// ConversationsLoaded installs the fetched conversation list.
	ConversationsLoaded struct{ Conversations []domain.ConversationSummary }
	// AnalyticsRequested opens the analytics overlay with a placeholder.
	AnalyticsRequested struct{}
	// AnalyticsLoaded fills the analytics overlay.
	AnalyticsLoaded struct{ Analytics domain.Analytics }
	// AnalyticsHidden closes the analytics overlay.
	AnalyticsHidden struct{}
	// RequestTimedOut clears a flag whose response never arrived.
	RequestTimedOut struct {
		Flag Flag
		At   time.Time
	}
)

// Server frames.
type (
	// TutorReplied appends a tutor message.
	TutorReplied struct{ Message domain.ChatMessage }
	// OfferReceived appends an assessment offer.
	OfferReceived struct{ Message domain.ChatMessage }
	// AssessmentReceived installs a generated assessment.
	AssessmentReceived struct{ Assessment domain.Assessment }
	// ResultReceived installs a graded result. MessageID and At stamp the
	// transcript entry recorded for it.
	ResultReceived struct {
		Result    domain.AssessmentResult
		MessageID string
		At        time.Time
	}
	// ServerFailed reports an error frame.
	ServerFailed struct {
		Content string
		At      time.Time
	}
)

func (LoggedIn) event()               {}
func (LoggedOut) event()              {}
func (ConnectionChanged) event()      {}
func (ChatSent) event()               {}
func (SendUndelivered) event()        {}
func (AssessmentRequested) event()    {}
func (AnswerChosen) event()           {}
func (AssessmentSubmitted) event()    {}
func (AssessmentLeft) event()         {}
func (ResultAcknowledged) event()     {}
func (ConversationCleared) event()    {}
func (ConversationOpened) event()     {}
func (ConversationsRequested) event() {}
func (ConversationsLoaded) event()    {}
func (AnalyticsRequested) event()     {}
func (AnalyticsLoaded) event()        {}
func (AnalyticsHidden) event()        {}
func (RequestTimedOut) event()        {}
func (TutorReplied) event()           {}
func (OfferReceived) event()          {}
func (AssessmentReceived) event()     {}
func (ResultReceived) event()         {}
func (ServerFailed) event()           {}
