// Package state holds the tutor client's view state machine as an immutable
// snapshot and a pure reducer over a closed set of events.
package state

import (
	"slices"
	"time"

	"github.com/ashureev/tutor-client/internal/domain"
)

// View is the authoritative screen of the state machine.
type View string

const (
	ViewLogin            View = "login"
	ViewDashboard        View = "dashboard"
	ViewAssessment       View = "assessment"
	ViewAssessmentResult View = "assessment_result"
)

// Screen is what a renderer should draw. It equals the View except while an
// assessment is being generated, when the loading overlay wins.
type Screen string

const (
	ScreenLogin            Screen = "login"
	ScreenDashboard        Screen = "dashboard"
	ScreenAssessment       Screen = "assessment"
	ScreenAssessmentResult Screen = "assessment_result"
	ScreenLoading          Screen = "loading"
)

// Flag names a class of outstanding server request.
type Flag string

const (
	FlagAIThinking           Flag = "ai_thinking"
	FlagLoadingAssessment    Flag = "loading_assessment"
	FlagEvaluatingAssessment Flag = "evaluating_assessment"
)

// Flags project "the server is processing X". Each is set when its request
// is sent and cleared by the matching response.
type Flags struct {
	AIThinking           bool
	LoadingAssessment    bool
	EvaluatingAssessment bool
}

// Get returns the value of one flag.
func (f Flags) Get(flag Flag) bool {
	switch flag {
	case FlagAIThinking:
		return f.AIThinking
	case FlagLoadingAssessment:
		return f.LoadingAssessment
	case FlagEvaluatingAssessment:
		return f.EvaluatingAssessment
	}
	return false
}

func (f Flags) with(flag Flag, v bool) Flags {
	switch flag {
	case FlagAIThinking:
		f.AIThinking = v
	case FlagLoadingAssessment:
		f.LoadingAssessment = v
	case FlagEvaluatingAssessment:
		f.EvaluatingAssessment = v
	}
	return f
}

// NoticeKind classifies a user-visible signal.
type NoticeKind string

const (
	NoticeUndelivered NoticeKind = "undelivered"
	NoticeServerError NoticeKind = "server_error"
	NoticeTimeout     NoticeKind = "timeout"
)

// maxNotices bounds the notice list; older entries are dropped first.
const maxNotices = 20

// Notice is a non-fatal problem the learner should be told about.
type Notice struct {
	Kind NoticeKind
	Text string
	At   time.Time
}

// State is one immutable snapshot of the controller. Reduce never mutates
// a State it was given; slices and maps in a snapshot are not shared with
// later snapshots.
type State struct {
	View      View
	Session   *domain.Session
	Connected bool
	Flags     Flags

	Messages   []domain.ChatMessage
	Assessment *domain.Assessment
	Answers    domain.AnswerSet
	Result     *domain.AssessmentResult

	Conversations        []domain.ConversationSummary
	ConversationsLoading bool
	ShowAnalytics        bool
	Analytics            *domain.Analytics

	Notices []Notice
}

// Initial returns the signed-out state.
func Initial() State {
	return State{View: ViewLogin}
}

// Screen resolves the loading overlay against the current view.
func (s State) Screen() Screen {
	if s.View == ViewLogin {
		return ScreenLogin
	}
	if s.Flags.LoadingAssessment {
		return ScreenLoading
	}
	return Screen(s.View)
}

// SignedIn reports whether a session is active.
func (s State) SignedIn() bool {
	return s.Session != nil
}

// Clone returns a deep copy suitable for handing to another goroutine.
func (s State) Clone() State {
	c := s
	c.Messages = slices.Clone(s.Messages)
	c.Answers = s.Answers.Clone()
	c.Conversations = slices.Clone(s.Conversations)
	c.Notices = slices.Clone(s.Notices)
	if s.Session != nil {
		sess := *s.Session
		c.Session = &sess
	}
	if s.Assessment != nil {
		a := *s.Assessment
		a.Questions = slices.Clone(a.Questions)
		c.Assessment = &a
	}
	if s.Result != nil {
		r := *s.Result
		r.Feedback = slices.Clone(r.Feedback)
		c.Result = &r
	}
	if s.Analytics != nil {
		an := *s.Analytics
		c.Analytics = &an
	}
	return c
}
