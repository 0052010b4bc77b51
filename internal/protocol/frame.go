// Package protocol implements the JSON frame codec spoken over the tutor
// WebSocket. Frames are tagged with a "type" discriminator; inbound and
// outbound frames are closed sets of Go types so every consumer can switch
// over them exhaustively.
package protocol

import (
	"errors"

	"github.com/ashureev/tutor-client/internal/domain"
)

// Kind is the value of a frame's "type" field.
type Kind string

// Inbound kinds (server to client).
const (
	KindMessage          Kind = "message"
	KindAssessmentOffer  Kind = "assessment_offer"
	KindAssessment       Kind = "assessment"
	KindAssessmentResult Kind = "assessment_result"
	KindTyping           Kind = "typing"
	KindError            Kind = "error"
)

// Outbound kinds (client to server). Chat messages reuse KindMessage.
const (
	KindStartAssessment  Kind = "start_assessment"
	KindSubmitAssessment Kind = "submit_assessment"
)

var (
	// ErrMalformed is returned for frames that are not valid JSON or lack
	// the fields their kind requires.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownKind is returned for well-formed frames of a kind this
	// client does not understand.
	ErrUnknownKind = errors.New("unknown frame kind")
)

// Inbound is a frame received from the tutor server.
type Inbound interface {
	Kind() Kind
	inbound()
}

// TutorMessage is a chat reply from the tutor.
type TutorMessage struct {
	Content string
}

// AssessmentOffer invites the learner to take an assessment.
type AssessmentOffer struct {
	Content string
	Topic   string
}

// AssessmentReady delivers a generated assessment.
type AssessmentReady struct {
	Assessment domain.Assessment
}

// AssessmentGraded delivers the grading of a submission.
type AssessmentGraded struct {
	Score           int
	Feedback        []domain.QuestionFeedback // nil when the server sent no per-question array
	OverallFeedback string
	Topic           string
}

// Typing signals that the tutor is composing a reply.
type Typing struct {
	Content string
}

// ServerError reports a server-side failure to handle the last request.
type ServerError struct {
	Content string
}

func (TutorMessage) Kind() Kind     { return KindMessage }
func (AssessmentOffer) Kind() Kind  { return KindAssessmentOffer }
func (AssessmentReady) Kind() Kind  { return KindAssessment }
func (AssessmentGraded) Kind() Kind { return KindAssessmentResult }
func (Typing) Kind() Kind           { return KindTyping }
func (ServerError) Kind() Kind      { return KindError }

func (TutorMessage) inbound()     {}
func (AssessmentOffer) inbound()  {}
func (AssessmentReady) inbound()  {}
func (AssessmentGraded) inbound() {}
func (Typing) inbound()           {}
func (ServerError) inbound()      {}

// Outbound is a frame sent to the tutor server.
type Outbound interface {
	Kind() Kind
	outbound()
}

// ChatMessage carries learner input.
type ChatMessage struct {
	Content string
}

// StartAssessment asks the server to generate an assessment on Topic.
type StartAssessment struct {
	Topic string
}

// SubmitAssessment hands in the answers for an assessment.
type SubmitAssessment struct {
	AssessmentID string
	Answers      domain.AnswerSet
}

func (ChatMessage) Kind() Kind      { return KindMessage }
func (StartAssessment) Kind() Kind  { return KindStartAssessment }
func (SubmitAssessment) Kind() Kind { return KindSubmitAssessment }

func (ChatMessage) outbound()      {}
func (StartAssessment) outbound()  {}
func (SubmitAssessment) outbound() {}
