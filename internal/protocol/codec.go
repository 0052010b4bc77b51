package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ashureev/tutor-client/internal/domain"
)

// envelope is the single wire shape shared by every frame kind.
type envelope struct {
	Type         Kind               `json:"type"`
	Content      string             `json:"content,omitempty"`
	Topic        string             `json:"topic,omitempty"`
	Assessment   *domain.Assessment `json:"assessment,omitempty"`
	Result       *wireResult        `json:"result,omitempty"`
	AssessmentID string             `json:"assessment_id,omitempty"`
	Answers      domain.AnswerSet   `json:"answers,omitempty"`
}

type wireResult struct {
	Score           float64         `json:"score"`
	Feedback        json.RawMessage `json:"feedback,omitempty"`
	OverallFeedback string          `json:"overall_feedback,omitempty"`
	Topic           string          `json:"topic,omitempty"`
}

// DecodeInbound parses one server frame.
func DecodeInbound(data []byte) (Inbound, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindMessage:
		return TutorMessage{Content: env.Content}, nil
	case KindAssessmentOffer:
		return AssessmentOffer{Content: env.Content, Topic: env.Topic}, nil
	case KindAssessment:
		if env.Assessment == nil {
			return nil, fmt.Errorf("%w: assessment frame without assessment", ErrMalformed)
		}
		return AssessmentReady{Assessment: *env.Assessment}, nil
	case KindAssessmentResult:
		if env.Result == nil {
			return nil, fmt.Errorf("%w: assessment_result frame without result", ErrMalformed)
		}
		return AssessmentGraded{
			Score:           clampScore(env.Result.Score),
			Feedback:        decodeFeedback(env.Result.Feedback),
			OverallFeedback: env.Result.OverallFeedback,
			Topic:           env.Result.Topic,
		}, nil
	case KindTyping:
		return Typing{Content: env.Content}, nil
	case KindError:
		return ServerError{Content: env.Content}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// EncodeOutbound serializes a client frame.
func EncodeOutbound(f Outbound) ([]byte, error) {
	env := envelope{Type: f.Kind()}
	switch f := f.(type) {
	case ChatMessage:
		env.Content = f.Content
	case StartAssessment:
		env.Topic = f.Topic
	case SubmitAssessment:
		env.AssessmentID = f.AssessmentID
		env.Answers = f.Answers
		if env.Answers == nil {
			env.Answers = domain.AnswerSet{}
		}
	default:
		return nil, fmt.Errorf("encode outbound: unsupported frame %T", f)
	}
	return json.Marshal(env)
}

// DecodeOutbound parses one client frame. It is the server-side mirror of
// EncodeOutbound.
func DecodeOutbound(data []byte) (Outbound, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindMessage:
		return ChatMessage{Content: env.Content}, nil
	case KindStartAssessment:
		if env.Topic == "" {
			return nil, fmt.Errorf("%w: start_assessment without topic", ErrMalformed)
		}
		return StartAssessment{Topic: env.Topic}, nil
	case KindSubmitAssessment:
		if env.AssessmentID == "" || len(env.Answers) == 0 {
			return nil, fmt.Errorf("%w: submit_assessment needs assessment_id and answers", ErrMalformed)
		}
		return SubmitAssessment{AssessmentID: env.AssessmentID, Answers: env.Answers}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// EncodeInbound serializes a server frame. It is the server-side mirror of
// DecodeInbound.
func EncodeInbound(f Inbound) ([]byte, error) {
	env := envelope{Type: f.Kind()}
	switch f := f.(type) {
	case TutorMessage:
		env.Content = f.Content
	case AssessmentOffer:
		env.Content = f.Content
		env.Topic = f.Topic
	case AssessmentReady:
		a := f.Assessment
		env.Assessment = &a
	case AssessmentGraded:
		res := &wireResult{
			Score:           float64(f.Score),
			OverallFeedback: f.OverallFeedback,
			Topic:           f.Topic,
		}
		if f.Feedback != nil {
			raw, err := json.Marshal(f.Feedback)
			if err != nil {
				return nil, fmt.Errorf("encode feedback: %w", err)
			}
			res.Feedback = raw
		}
		env.Result = res
	case Typing:
		env.Content = f.Content
	case ServerError:
		env.Content = f.Content
	default:
		return nil, fmt.Errorf("encode inbound: unsupported frame %T", f)
	}
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Type == "" {
		return envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// decodeFeedback returns nil unless raw is a JSON array of feedback items,
// so servers that send a string or null fall back to overall feedback.
func decodeFeedback(raw json.RawMessage) []domain.QuestionFeedback {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var fb []domain.QuestionFeedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil
	}
	if fb == nil {
		fb = []domain.QuestionFeedback{}
	}
	return fb
}

// clampScore bounds score to 0..100 before rounding, so huge values do not
// overflow int. NaN counts as 0.
func clampScore(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
