package state

import (
	"fmt"
	"slices"

	"github.com/ashureev/tutor-client/internal/domain"
)

// Reduce applies one event and returns the next snapshot. It is pure: the
// input snapshot is left untouched and no I/O happens here. Events that do
// not apply to the current view are ignored.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case LoggedIn:
		sess := ev.Session
		next := Initial()
		next.View = ViewDashboard
		next.Session = &sess
		return next
	case LoggedOut:
		return Initial()
	case ConnectionChanged:
		s.Connected = ev.Open
		return s
	}

	// Everything below needs a session; late events after logout are dropped.
	if !s.SignedIn() {
		return s
	}

	switch ev := ev.(type) {
	case ChatSent:
		s.Flags.AIThinking = true
		s.Messages = appendMessage(s.Messages, ev.Message)

	case SendUndelivered:
		s.Notices = appendNotice(s.Notices, Notice{
			Kind: NoticeUndelivered,
			Text: fmt.Sprintf("Message not sent: %q. Check your connection and try again.", ev.Content),
			At:   ev.At,
		})

	case AssessmentRequested:
		if s.View == ViewAssessmentResult {
			s.View = ViewDashboard
			s.Result = nil
		}
		s.Flags.LoadingAssessment = true

	case AnswerChosen:
		if s.View != ViewAssessment || s.Assessment == nil {
			return s
		}
		s.Answers = s.Answers.With(ev.QuestionID, ev.Option)

	case AssessmentSubmitted:
		if s.Assessment == nil {
			return s
		}
		s.Flags.EvaluatingAssessment = true

	case AssessmentLeft:
		if s.View != ViewAssessment {
			return s
		}
		s.View = ViewDashboard
		s.Assessment = nil
		s.Answers = nil

	case ResultAcknowledged:
		if s.View != ViewAssessmentResult {
			return s
		}
		s.View = ViewDashboard
		s.Result = nil

	case ConversationCleared:
		s.Messages = nil

	case ConversationOpened:
		s.Messages = slices.Clone(ev.Conversation.ChatHistory)
		s.View = ViewDashboard
		s.ShowAnalytics = false

	case ConversationsRequested:
		s.ConversationsLoading = true

	case ConversationsLoaded:
		s.Conversations = slices.Clone(ev.Conversations)
		s.ConversationsLoading = false

	case AnalyticsRequested:
		s.ShowAnalytics = true
		s.Analytics = nil

	case AnalyticsLoaded:
		a := ev.Analytics
		s.Analytics = &a

	case AnalyticsHidden:
		s.ShowAnalytics = false

	case RequestTimedOut:
		if !s.Flags.Get(ev.Flag) {
			return s
		}
		s.Flags = s.Flags.with(ev.Flag, false)
		s.Notices = appendNotice(s.Notices, Notice{
			Kind: NoticeTimeout,
			Text: timeoutText(ev.Flag),
			At:   ev.At,
		})

	case TutorReplied:
		s.Flags.AIThinking = false
		s.Messages = appendMessage(s.Messages, ev.Message)

	case OfferReceived:
		s.Messages = appendMessage(s.Messages, ev.Message)

	case AssessmentReceived:
		a := ev.Assessment
		a.Questions = slices.Clone(a.Questions)
		s.Flags.AIThinking = false
		s.Flags.LoadingAssessment = false
		s.Assessment = &a
		s.Answers = domain.AnswerSet{}
		s.Result = nil
		s.View = ViewAssessment

	case ResultReceived:
		s = applyResult(s, ev)

	case ServerFailed:
		s.Flags = Flags{}
		s.Notices = appendNotice(s.Notices, Notice{
			Kind: NoticeServerError,
			Text: ev.Content,
			At:   ev.At,
		})
	}
	return s
}

func applyResult(s State, ev ResultReceived) State {
	res := ev.Result
	res.Feedback = slices.Clone(res.Feedback)
	if res.Topic == "" && s.Result != nil {
		res.Topic = s.Result.Topic
	}
	if res.Topic == "" && s.Assessment != nil {
		res.Topic = s.Assessment.Topic
	}
	res.FeedbackText = domain.Summary(res.Feedback, res.OverallFeedback)

	s.Flags.EvaluatingAssessment = false
	s.Result = &res
	s.Assessment = nil
	s.Answers = nil
	s.View = ViewAssessmentResult
	s.Messages = appendMessage(s.Messages, domain.ChatMessage{
		ID:        ev.MessageID,
		Kind:      domain.KindAssessmentResult,
		Content:   fmt.Sprintf("**Assessment: %s**\nScore: %d%%\n%s", res.Topic, res.Score, res.FeedbackText),
		Topic:     res.Topic,
		Passed:    res.Passed(),
		CreatedAt: ev.At,
	})
	return s
}

func timeoutText(flag Flag) string {
	switch flag {
	case FlagLoadingAssessment:
		return "The assessment is taking too long to generate. Please try again."
	case FlagEvaluatingAssessment:
		return "Grading is taking too long. You can submit your answers again."
	default:
		return "The tutor did not answer in time. Please send your message again."
	}
}

// appendMessage never writes into the backing array of an older snapshot.
func appendMessage(log []domain.ChatMessage, m domain.ChatMessage) []domain.ChatMessage {
	return append(slices.Clip(log), m)
}

func appendNotice(notices []Notice, n Notice) []Notice {
	next := append(slices.Clip(notices), n)
	if len(next) > maxNotices {
		next = slices.Clone(next[len(next)-maxNotices:])
	}
	return next
}
