package tutor

import (
	"context"
	"strings"

	"github.com/ashureev/tutor-client/internal/protocol"
	"github.com/ashureev/tutor-client/internal/state"
)

// AcceptOffer starts the assessment offered for topic. It is only available
// on the dashboard with an open connection.
func (c *Controller) AcceptOffer(ctx context.Context, topic string) error {
	return c.do(ctx, func() error {
		if err := c.state.CanUseDashboard(); err != nil {
			return err
		}
		return c.requestAssessment(topic)
	})
}

// RetakeAssessment starts a new assessment on topic from the dashboard or
// the result screen.
func (c *Controller) RetakeAssessment(ctx context.Context, topic string) error {
	return c.do(ctx, func() error {
		return c.requestAssessment(topic)
	})
}

func (c *Controller) requestAssessment(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := c.state.CanRequestAssessment(); err != nil {
		return err
	}
	if !c.conn.IsOpen() {
		return ErrNotConnected
	}
	if err := c.conn.Send(protocol.StartAssessment{Topic: topic}); err != nil {
		return err
	}
	c.apply(state.AssessmentRequested{Topic: topic})
	return nil
}

// Answer records option for questionID. Nothing is transmitted.
func (c *Controller) Answer(ctx context.Context, questionID, option string) error {
	return c.do(ctx, func() error {
		if err := c.state.CanAnswer(questionID, option); err != nil {
			return err
		}
		c.apply(state.AnswerChosen{QuestionID: questionID, Option: option})
		return nil
	})
}

// Submit sends the current answers for grading. The assessment and answers
// stay installed until the result arrives.
func (c *Controller) Submit(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanSubmit(); err != nil {
			return err
		}
		if !c.conn.IsOpen() {
			return ErrNotConnected
		}
		frame := protocol.SubmitAssessment{
			AssessmentID: c.state.Assessment.ID,
			Answers:      c.state.Answers.Clone(),
		}
		if err := c.conn.Send(frame); err != nil {
			return err
		}
		c.apply(state.AssessmentSubmitted{})
		return nil
	})
}

// LeaveAssessment abandons the assessment in progress and returns to chat.
func (c *Controller) LeaveAssessment(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanLeaveAssessment(); err != nil {
			return err
		}
		c.apply(state.AssessmentLeft{})
		return nil
	})
}

// ContinueLearning leaves the result screen.
func (c *Controller) ContinueLearning(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanAcknowledgeResult(); err != nil {
			return err
		}
		c.apply(state.ResultAcknowledged{})
		return nil
	})
}

// TakeLessonAgain leaves the result screen and, when connected, asks the
// tutor to explain the assessed topic again.
func (c *Controller) TakeLessonAgain(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanAcknowledgeResult(); err != nil {
			return err
		}
		topic := c.state.Result.Topic
		c.apply(state.ResultAcknowledged{})

		if topic == "" || !c.conn.IsOpen() {
			c.logger.Info("lesson not requested", "topic", topic, "connected", c.conn.IsOpen())
			return nil
		}
		return c.outbox.transmit("Explain " + topic)
	})
}
