package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/state"
)

// renderer prints the parts of each snapshot that changed since the last
// one. It only ever appends to the terminal.
type renderer struct {
	mu  sync.Mutex
	out io.Writer

	printed   int
	screen    state.Screen
	connected bool
	notices   int
	analytics bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) Render(s state.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Connected != r.connected {
		r.connected = s.Connected
		if s.Connected {
			fmt.Fprintln(r.out, "· connected")
		} else if s.SignedIn() {
			fmt.Fprintln(r.out, "· disconnected, reconnecting…")
		}
	}

	if len(s.Messages) < r.printed {
		r.printed = 0
		fmt.Fprintln(r.out, "· new conversation")
	}
	for _, m := range s.Messages[r.printed:] {
		r.message(m)
	}
	r.printed = len(s.Messages)

	if len(s.Notices) < r.notices {
		r.notices = 0
	}
	for _, n := range s.Notices[r.notices:] {
		fmt.Fprintf(r.out, "! %s: %s\n", n.Kind, n.Text)
	}
	r.notices = len(s.Notices)

	if screen := s.Screen(); screen != r.screen {
		r.screen = screen
		r.screenChanged(s)
	}

	if s.ShowAnalytics && s.Analytics != nil && !r.analytics {
		a := s.Analytics
		fmt.Fprintf(r.out, "· lessons %d, assessments %d, average %.1f%%, pass rate %.1f%%\n",
			a.TotalLessons, a.AssessmentsTaken, a.AverageScore, a.PassRate)
	}
	r.analytics = s.ShowAnalytics && s.Analytics != nil
}

func (r *renderer) message(m domain.ChatMessage) {
	if m.IsFromLearner() {
		fmt.Fprintf(r.out, "you> %s\n", m.Content)
		return
	}
	switch m.Kind {
	case domain.KindTutor:
		fmt.Fprintf(r.out, "tutor> %s\n", m.Content)
	case domain.KindAssessmentOffer:
		fmt.Fprintf(r.out, "tutor> %s [/quiz %s]\n", m.Content, m.Topic)
	case domain.KindAssessmentResult:
		fmt.Fprintf(r.out, "%s\n", m.Content)
	}
}

func (r *renderer) screenChanged(s state.State) {
	switch s.Screen() {
	case state.ScreenLoading:
		fmt.Fprintln(r.out, "· generating assessment…")
	case state.ScreenAssessment:
		if s.Assessment == nil {
			return
		}
		fmt.Fprintf(r.out, "== Assessment: %s ==\n", s.Assessment.Topic)
		for _, q := range s.Assessment.Questions {
			fmt.Fprintf(r.out, "[%s] %s\n", q.ID, q.Prompt)
			fmt.Fprintf(r.out, "     %s\n", strings.Join(q.Options, " | "))
		}
		fmt.Fprintln(r.out, "answer with /answer <question> <option>, then /submit")
	case state.ScreenAssessmentResult:
		if s.Result == nil {
			return
		}
		verdict := "keep practising"
		if s.Result.Passed() {
			verdict = "passed"
		}
		fmt.Fprintf(r.out, "== Result: %d%% (%s) ==\n%s\n", s.Result.Score, verdict, s.Result.FeedbackText)
		fmt.Fprintln(r.out, "/continue, /again or /retake")
	case state.ScreenDashboard:
		if s.SignedIn() {
			fmt.Fprintf(r.out, "· signed in as %s\n", s.Session.Username)
		}
	case state.ScreenLogin:
		fmt.Fprintln(r.out, "· signed out")
	}
}

func (r *renderer) conversations(convs []domain.ConversationSummary, loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loading && len(convs) == 0 {
		fmt.Fprintln(r.out, "· loading conversations…")
		return
	}
	if len(convs) == 0 {
		fmt.Fprintln(r.out, "· no past conversations")
		return
	}
	for i, c := range convs {
		fmt.Fprintf(r.out, "%2d. %s\n", i+1, c.DisplayTitle(i))
	}
}
