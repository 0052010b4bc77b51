package tutor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/protocol"
	"github.com/ashureev/tutor-client/internal/state"
)

// Dispatcher turns raw inbound frames into state events.
type Dispatcher struct {
	emit    func(state.Event)
	newID   func() string
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Handle decodes one frame and applies it. Malformed frames and frames of an
// unknown kind are dropped.
func (d *Dispatcher) Handle(data []byte) {
	frame, err := protocol.DecodeInbound(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownKind) {
			reason = "unknown_kind"
		}
		d.metrics.FrameDropped(reason)
		d.logger.Debug("dropping inbound frame", "reason", reason, "error", err)
		return
	}

	d.metrics.FrameReceived(string(frame.Kind()))
	if ev := d.event(frame); ev != nil {
		d.emit(ev)
	}
}

func (d *Dispatcher) event(frame protocol.Inbound) state.Event {
	switch f := frame.(type) {
	case protocol.TutorMessage:
		return state.TutorReplied{Message: domain.ChatMessage{
			ID:        d.newID(),
			Kind:      domain.KindTutor,
			Content:   f.Content,
			CreatedAt: d.now(),
		}}
	case protocol.AssessmentOffer:
		return state.OfferReceived{Message: domain.ChatMessage{
			ID:        d.newID(),
			Kind:      domain.KindAssessmentOffer,
			Content:   f.Content,
			Topic:     f.Topic,
			CreatedAt: d.now(),
		}}
	case protocol.AssessmentReady:
		return state.AssessmentReceived{Assessment: f.Assessment}
	case protocol.AssessmentGraded:
		return state.ResultReceived{
			Result: domain.AssessmentResult{
				Score:           f.Score,
				Feedback:        f.Feedback,
				OverallFeedback: f.OverallFeedback,
				Topic:           f.Topic,
			},
			MessageID: d.newID(),
			At:        d.now(),
		}
	case protocol.Typing:
		// Thinking is already tracked by the flag set on send.
		return nil
	case protocol.ServerError:
		return state.ServerFailed{Content: f.Content, At: d.now()}
	}
	return nil
}
