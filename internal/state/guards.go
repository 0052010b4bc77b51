package state

import (
	"errors"
	"fmt"
)

// Guard errors. They are returned before any transmission and leave the
// state unchanged.
var (
	ErrSignedOut       = errors.New("not signed in")
	ErrInvalidView     = errors.New("action not available on this screen")
	ErrBusy            = errors.New("a request of this kind is already in flight")
	ErrNoAssessment    = errors.New("no assessment in progress")
	ErrNoAnswers       = errors.New("no answers selected")
	ErrUnknownQuestion = errors.New("question is not part of the assessment")
	ErrUnknownOption   = errors.New("option is not one of the question's choices")
)

// CanChat reports whether a chat message may be sent.
func (s State) CanChat() error {
	if err := s.requireView(ViewDashboard); err != nil {
		return err
	}
	if s.Flags.AIThinking {
		return fmt.Errorf("chat: %w", ErrBusy)
	}
	return nil
}

// CanRequestAssessment reports whether an assessment may be started. It is
// allowed from the dashboard and from the result screen (retake).
func (s State) CanRequestAssessment() error {
	if !s.SignedIn() {
		return ErrSignedOut
	}
	if s.View != ViewDashboard && s.View != ViewAssessmentResult {
		return fmt.Errorf("start assessment from %s: %w", s.View, ErrInvalidView)
	}
	if s.Flags.LoadingAssessment {
		return fmt.Errorf("start assessment: %w", ErrBusy)
	}
	return nil
}

// CanAnswer reports whether option may be recorded for questionID.
func (s State) CanAnswer(questionID, option string) error {
	if err := s.requireView(ViewAssessment); err != nil {
		return err
	}
	if s.Flags.EvaluatingAssessment {
		return fmt.Errorf("answer: %w", ErrBusy)
	}
	q, ok := s.Assessment.Question(questionID)
	if !ok {
		return fmt.Errorf("answer %q: %w", questionID, ErrUnknownQuestion)
	}
	if !q.HasOption(option) {
		return fmt.Errorf("answer %q with %q: %w", questionID, option, ErrUnknownOption)
	}
	return nil
}

// CanSubmit reports whether the current answers may be submitted.
func (s State) CanSubmit() error {
	if err := s.requireView(ViewAssessment); err != nil {
		return err
	}
	if s.Assessment == nil {
		return ErrNoAssessment
	}
	if len(s.Answers) == 0 {
		return ErrNoAnswers
	}
	if s.Flags.EvaluatingAssessment {
		return fmt.Errorf("submit: %w", ErrBusy)
	}
	return nil
}

// CanLeaveAssessment reports whether the learner may navigate back to chat.
func (s State) CanLeaveAssessment() error {
	return s.requireView(ViewAssessment)
}

// CanAcknowledgeResult reports whether the result screen may be left.
func (s State) CanAcknowledgeResult() error {
	return s.requireView(ViewAssessmentResult)
}

func (s State) requireView(v View) error {
	if !s.SignedIn() {
		return ErrSignedOut
	}
	if s.View != v {
		return fmt.Errorf("need %s, on %s: %w", v, s.View, ErrInvalidView)
	}
	return nil
}

// CanUseDashboard reports whether dashboard-only actions (new conversation,
// opening a past conversation, analytics) are available.
func (s State) CanUseDashboard() error {
	return s.requireView(ViewDashboard)
}
