package domain

import (
	"slices"
	"strings"
)

// PassingScore is the only score that counts as a pass.
const PassingScore = 100

// Question is one multiple-choice item of an assessment.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// HasOption reports whether option is one of the question's choices.
func (q Question) HasOption(option string) bool {
	return slices.Contains(q.Options, option)
}

// Assessment is an immutable set of questions on one topic.
type Assessment struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
}

// Question looks up a question by id.
func (a *Assessment) Question(id string) (Question, bool) {
	if a == nil {
		return Question{}, false
	}
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AnswerSet maps question id to the chosen option.
type AnswerSet map[string]string

// With returns a copy of the set with questionID set to option.
func (a AnswerSet) With(questionID, option string) AnswerSet {
	next := make(AnswerSet, len(a)+1)
	for k, v := range a {
		next[k] = v
	}
	next[questionID] = option
	return next
}

// Clone returns an independent copy of the set.
func (a AnswerSet) Clone() AnswerSet {
	if a == nil {
		return nil
	}
	next := make(AnswerSet, len(a))
	for k, v := range a {
		next[k] = v
	}
	return next
}

// QuestionFeedback is the grader's verdict for a single question.
type QuestionFeedback struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// AssessmentResult is the graded outcome of a submission.
type AssessmentResult struct {
	Score           int
	Feedback        []QuestionFeedback
	OverallFeedback string
	Topic           string
	FeedbackText    string
}

// Passed reports whether every question was answered correctly.
func (r *AssessmentResult) Passed() bool {
	return r != nil && r.Score == PassingScore
}

// Summary renders the feedback as one line per question, or falls back to
// the overall feedback when the grader sent no per-question breakdown. A nil
// slice means "absent"; an empty one yields an empty summary.
func Summary(feedback []QuestionFeedback, overall string) string {
	if feedback == nil {
		if overall != "" {
			return overall
		}
		return "No feedback available"
	}
	lines := make([]string, 0, len(feedback))
	for _, fb := range feedback {
		mark := "✅"
		if !fb.IsCorrect {
			mark = "❌"
		}
		lines = append(lines, fb.Question+": "+fb.UserAnswer+" "+mark)
	}
	return strings.Join(lines, "\n")
}
