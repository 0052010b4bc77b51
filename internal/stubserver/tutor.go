// Package stubserver is a deterministic loopback implementation of the tutor
// backend. It speaks the same WebSocket frames and REST reads as the real
// service, so the client can be exercised end to end without an LLM.
package stubserver

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/protocol"
)

const (
	offerContent     = "Would you like to take a quick test?"
	maxConversations = 20
	maxTitleLen      = 50
	passThreshold    = 60
)

var (
	leadingAsk  = regexp.MustCompile(`^(explain|tell|teach|show|what|how|where|when|why|can you)\s+(me\s+)?(about\s+)?`)
	leadingVerb = regexp.MustCompile(`^(is|are|does|do)\s+`)
	trailingQ   = regexp.MustCompile(`\?+$`)

	casualWords = []string{"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye", "ok", "okay"}
)

// storedQuestion keeps the answer key next to the question sent to clients.
type storedQuestion struct {
	domain.Question
	Correct string
}

type storedAssessment struct {
	id        string
	topic     string
	questions []storedQuestion
}

type learner struct {
	conversations []domain.ConversationSummary
	results       []float64
}

// Tutor holds every learner's lessons, assessments and results in memory.
type Tutor struct {
	mu          sync.Mutex
	learners    map[string]*learner
	assessments map[string]*storedAssessment
	now         func() time.Time
	newID       func() string
}

// NewTutor creates an empty tutor.
func NewTutor() *Tutor {
	return &Tutor{
		learners:    make(map[string]*learner),
		assessments: make(map[string]*storedAssessment),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (t *Tutor) learner(userID string) *learner {
	l, ok := t.learners[userID]
	if !ok {
		l = &learner{}
		t.learners[userID] = l
	}
	return l
}

// Handle answers one client frame with the frames the server sends back.
func (t *Tutor) Handle(userID string, frame protocol.Outbound) []protocol.Inbound {
	switch f := frame.(type) {
	case protocol.ChatMessage:
		return t.Reply(userID, f.Content)
	case protocol.StartAssessment:
		return []protocol.Inbound{t.StartAssessment(f.Topic)}
	case protocol.SubmitAssessment:
		return []protocol.Inbound{t.Grade(userID, f.AssessmentID, f.Answers)}
	}
	return []protocol.Inbound{unsupported()}
}

// Reply answers a chat message. Small talk gets a one-line greeting; anything
// else gets a typing hint, a lesson and an assessment offer on the extracted
// topic.
func (t *Tutor) Reply(userID, content string) []protocol.Inbound {
	content = strings.TrimSpace(content)
	if content == "" {
		return []protocol.Inbound{unsupported()}
	}
	if IsCasual(content) {
		return []protocol.Inbound{protocol.TutorMessage{
			Content: "Hello! What would you like to learn about today?",
		}}
	}

	topic := ExtractTopic(content)
	t.recordConversation(userID, content)

	return []protocol.Inbound{
		protocol.Typing{Content: "Thinking..."},
		protocol.TutorMessage{Content: lesson(content, topic)},
		protocol.AssessmentOffer{Content: offerContent, Topic: topic},
	}
}

func (t *Tutor) recordConversation(userID, content string) {
	title := content
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.learner(userID)
	conv := domain.ConversationSummary{
		ID:        t.newID(),
		Title:     title,
		Topic:     content,
		Timestamp: fmt.Sprint(t.now().Unix()),
	}
	l.conversations = slices.Insert(l.conversations, 0, conv)
	if len(l.conversations) > maxConversations {
		l.conversations = l.conversations[:maxConversations]
	}
}

// StartAssessment generates a three question assessment on topic and keeps
// its answer key for grading.
func (t *Tutor) StartAssessment(topic string) protocol.Inbound {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return unsupported()
	}

	stored := &storedAssessment{id: t.newID(), topic: topic, questions: questionsAbout(topic)}

	t.mu.Lock()
	t.assessments[stored.id] = stored
	t.mu.Unlock()

	out := domain.Assessment{ID: stored.id, Topic: topic}
	for _, q := range stored.questions {
		out.Questions = append(out.Questions, q.Question)
	}
	return protocol.AssessmentReady{Assessment: out}
}

// Grade scores a submission as correct/total*100 and returns per-question
// feedback in question order.
func (t *Tutor) Grade(userID, assessmentID string, answers domain.AnswerSet) protocol.Inbound {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, ok := t.assessments[assessmentID]
	if !ok {
		return protocol.ServerError{Content: "Assessment not found"}
	}

	feedback := make([]domain.QuestionFeedback, 0, len(stored.questions))
	correct := 0
	for _, q := range stored.questions {
		answer, ok := answers[q.ID]
		if !ok {
			answer = "No answer provided"
		}
		fb := domain.QuestionFeedback{
			Question:   q.Prompt,
			UserAnswer: answer,
			IsCorrect:  answer == q.Correct,
		}
		if fb.IsCorrect {
			correct++
		} else {
			fb.CorrectAnswer = q.Correct
		}
		feedback = append(feedback, fb)
	}

	score := float64(correct) / float64(len(stored.questions)) * 100
	l := t.learner(userID)
	l.results = append(l.results, score)

	return protocol.AssessmentGraded{
		Score:           int(math.Round(score)),
		Feedback:        feedback,
		OverallFeedback: overallFeedback(score, stored.topic),
		Topic:           stored.topic,
	}
}

// Conversations lists a learner's past lessons, newest first.
func (t *Tutor) Conversations(userID string) []domain.ConversationSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.learners[userID]
	if !ok {
		return []domain.ConversationSummary{}
	}
	return slices.Clone(l.conversations)
}

// Analytics summarizes a learner's lessons and graded assessments.
func (t *Tutor) Analytics(userID string) domain.Analytics {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.learners[userID]
	if !ok {
		return domain.Analytics{}
	}
	out := domain.Analytics{
		TotalLessons:     len(l.conversations),
		AssessmentsTaken: len(l.results),
	}
	if len(l.results) == 0 {
		return out
	}
	var total float64
	passed := 0
	for _, score := range l.results {
		total += score
		if score >= passThreshold {
			passed++
		}
	}
	n := float64(len(l.results))
	out.AverageScore = round1(total / n)
	out.PassRate = round1(float64(passed) / n * 100)
	return out
}

// IsCasual reports whether content is small talk: at most three words,
// containing a casual word anywhere, even inside another word ("this"
// contains "hi"). Casual messages are not recorded as conversations.
func IsCasual(content string) bool {
	if n := len(strings.Fields(content)); n == 0 || n > 3 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, w := range casualWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ExtractTopic strips question phrasing from a request to find its subject.
func ExtractTopic(raw string) string {
	topic := strings.ToLower(strings.TrimSpace(raw))
	topic = leadingAsk.ReplaceAllString(topic, "")
	topic = leadingVerb.ReplaceAllString(topic, "")
	topic = trailingQ.ReplaceAllString(topic, "")
	topic = firstWords(strings.TrimSpace(topic), 6)

	if len(topic) < 3 {
		topic = firstWords(strings.TrimSpace(raw), 4)
	}
	return topic
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}

func lesson(request, topic string) string {
	return fmt.Sprintf(`Here is a short lesson in response to %q.

1. Definition: %s is a core idea worth understanding from first principles.
2. Key ideas: learn the rules that govern %s and the vocabulary around it.
3. Process: work through %s step by step, checking each step as you go.
4. Examples: try two small worked examples of %s before moving on.
5. Significance: %s shows up in many places, so practice it regularly.`,
		request, topic, topic, topic, topic, topic)
}

// questionsAbout builds the answer key. The first option is always correct
// so graders and tests can reason about it.
func questionsAbout(topic string) []storedQuestion {
	prompts := []string{
		"Which statement best describes %s?",
		"What is the first step when applying %s?",
		"Why is %s important?",
	}
	letters := []string{"A", "B", "C", "D"}

	out := make([]storedQuestion, 0, len(prompts))
	for i, p := range prompts {
		out = append(out, storedQuestion{
			Question: domain.Question{
				ID:      fmt.Sprintf("q%d", i+1),
				Prompt:  fmt.Sprintf(p, topic),
				Options: slices.Clone(letters),
			},
			Correct: letters[0],
		})
	}
	return out
}

func overallFeedback(score float64, topic string) string {
	switch {
	case score >= 80:
		return fmt.Sprintf("Excellent work! You have a strong grasp of %s.", topic)
	case score >= 50:
		return fmt.Sprintf("Good effort. Review the questions you missed on %s and try again.", topic)
	default:
		return fmt.Sprintf("Consider retaking the lesson on %s before another attempt.", topic)
	}
}

func unsupported() protocol.Inbound {
	return protocol.ServerError{Content: "Unsupported message type or missing data."}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
