package tutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/state"
	"github.com/ashureev/tutor-client/internal/transport"
)

func (h *harness) awaitConn(want transport.State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		s, err := h.ctrl.ConnectionState(context.Background())
		return err == nil && s == want
	}, waitFor, 5*time.Millisecond, "connection never became %s", want)
}

func TestAliceChatScenario(t *testing.T) {
	h := newHarness(t)

	session, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "user_alice", session.UserID)
	assert.Equal(t, state.ViewDashboard, h.snapshot().View)

	s := h.await("conversation list never loaded", func(s state.State) bool {
		return s.Connected && len(s.Conversations) == 1
	})
	assert.False(t, s.ConversationsLoading)
	assert.Equal(t, "ws://tutor.test/ws/tutor/user_alice", h.dialer.urls[0])

	require.NoError(t, h.ctrl.SendChat(h.ctx, "Teach me about recursion"))
	s = h.snapshot()
	assert.True(t, s.Flags.AIThinking)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, domain.KindUser, s.Messages[0].Kind)
	assert.Equal(t, "Teach me about recursion", s.Messages[0].Content)

	frames := h.sent(1)
	assert.Equal(t, map[string]interface{}{"type": "message", "content": "Teach me about recursion"}, frames[0])

	h.serverSends(`{"type":"message","content":"Recursion is when a function calls itself."}`)
	s = h.await("tutor reply never arrived", func(s state.State) bool { return !s.Flags.AIThinking })
	require.Len(t, s.Messages, 2)
	assert.Equal(t, domain.KindTutor, s.Messages[1].Kind)
	assert.Equal(t, "Recursion is when a function calls itself.", s.Messages[1].Content)
	assert.NotEmpty(t, s.Messages[1].ID)
	assert.Equal(t, h.clock.Now(), s.Messages[1].CreatedAt)

	assert.Equal(t, "user_alice", h.store.saved().UserID)
}

func TestRecursionAssessmentScenario(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")

	h.serverSends(`{"type":"assessment_offer","content":"Ready for a quiz?","topic":"recursion"}`)
	s := h.await("offer never arrived", func(s state.State) bool { return len(s.Messages) == 1 })
	assert.Equal(t, domain.KindAssessmentOffer, s.Messages[0].Kind)
	assert.Equal(t, "recursion", s.Messages[0].Topic)
	assert.Equal(t, state.ViewDashboard, s.View)

	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))
	s = h.snapshot()
	assert.True(t, s.Flags.LoadingAssessment)
	assert.Equal(t, state.ScreenLoading, s.Screen())
	frames := h.sent(1)
	assert.Equal(t, map[string]interface{}{"type": "start_assessment", "topic": "recursion"}, frames[0])

	h.serverSends(threeQuestionAssessment)
	s = h.await("assessment never installed", func(s state.State) bool { return s.View == state.ViewAssessment })
	assert.False(t, s.Flags.LoadingAssessment)
	require.NotNil(t, s.Assessment)
	assert.Len(t, s.Assessment.Questions, 3)
	assert.Equal(t, state.ScreenAssessment, s.Screen())
}

func TestSubmitRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))
	h.serverSends(threeQuestionAssessment)
	h.await("assessment never installed", func(s state.State) bool { return s.View == state.ViewAssessment })

	require.ErrorIs(t, h.ctrl.Submit(h.ctx), ErrNoAnswers)

	require.NoError(t, h.ctrl.Answer(h.ctx, "q1", "A"))
	require.NoError(t, h.ctrl.Answer(h.ctx, "q2", "C"))
	require.NoError(t, h.ctrl.Answer(h.ctx, "q2", "B"))
	require.NoError(t, h.ctrl.Submit(h.ctx))

	s := h.snapshot()
	assert.True(t, s.Flags.EvaluatingAssessment)
	require.NotNil(t, s.Assessment, "assessment is kept until the result arrives")
	assert.Equal(t, domain.AnswerSet{"q1": "A", "q2": "B"}, s.Answers)
	require.ErrorIs(t, h.ctrl.Submit(h.ctx), ErrBusy)
	require.ErrorIs(t, h.ctrl.Answer(h.ctx, "q3", "A"), ErrBusy)

	frames := h.sent(2)
	assert.Equal(t, map[string]interface{}{
		"type":          "submit_assessment",
		"assessment_id": "a1",
		"answers":       map[string]interface{}{"q1": "A", "q2": "B"},
	}, frames[1])

	h.serverSends(`{"type":"assessment_result","result":{"score":50,"topic":"recursion","feedback":[
		{"question":"q1","user_answer":"A","is_correct":true,"correct_answer":"A"},
		{"question":"q2","user_answer":"B","is_correct":false,"correct_answer":"C"}]}}`)

	s = h.await("result never arrived", func(s state.State) bool { return s.View == state.ViewAssessmentResult })
	assert.False(t, s.Flags.EvaluatingAssessment)
	assert.Nil(t, s.Assessment)
	assert.Nil(t, s.Answers)
	require.NotNil(t, s.Result)
	require.Len(t, s.Result.Feedback, 2)
	assert.Equal(t, "q1", s.Result.Feedback[0].Question)
	assert.True(t, s.Result.Feedback[0].IsCorrect)
	assert.Equal(t, "q2", s.Result.Feedback[1].Question)
	assert.False(t, s.Result.Feedback[1].IsCorrect)
	assert.False(t, s.Result.Passed())
	assert.Equal(t, "q1: A ✅\nq2: B ❌", s.Result.FeedbackText)

	last := s.Messages[len(s.Messages)-1]
	assert.Equal(t, domain.KindAssessmentResult, last.Kind)
	assert.False(t, last.Passed)
}

func TestResultScreenActions(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))
	h.serverSends(threeQuestionAssessment)
	h.await("assessment", func(s state.State) bool { return s.View == state.ViewAssessment })
	require.NoError(t, h.ctrl.Answer(h.ctx, "q1", "A"))
	require.NoError(t, h.ctrl.Submit(h.ctx))
	h.serverSends(`{"type":"assessment_result","result":{"score":100,"overall_feedback":"Great job!"}}`)
	s := h.await("result", func(s state.State) bool { return s.View == state.ViewAssessmentResult })

	assert.True(t, s.Result.Passed())
	assert.Equal(t, "recursion", s.Result.Topic, "topic falls back to the assessment's")
	assert.Equal(t, "Great job!", s.Result.FeedbackText)

	require.ErrorIs(t, h.ctrl.AcceptOffer(h.ctx, "recursion"), ErrInvalidView)

	require.NoError(t, h.ctrl.TakeLessonAgain(h.ctx))
	s = h.snapshot()
	assert.Equal(t, state.ViewDashboard, s.View)
	assert.Nil(t, s.Result)
	assert.True(t, s.Flags.AIThinking)
	frames := h.sent(3)
	assert.Equal(t, map[string]interface{}{"type": "message", "content": "Explain recursion"}, frames[2])

	require.ErrorIs(t, h.ctrl.ContinueLearning(h.ctx), ErrInvalidView)
}

func TestRetakeFromResultScreen(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "loops"))
	h.serverSends(`{"type":"assessment","assessment":{"id":"a1","topic":"loops","questions":[{"id":"q1","question":"?","options":["A","B"]}]}}`)
	h.await("assessment", func(s state.State) bool { return s.View == state.ViewAssessment })
	require.NoError(t, h.ctrl.Answer(h.ctx, "q1", "B"))
	require.NoError(t, h.ctrl.Submit(h.ctx))
	h.serverSends(`{"type":"assessment_result","result":{"score":0,"feedback":[]}}`)
	h.await("result", func(s state.State) bool { return s.View == state.ViewAssessmentResult })

	require.NoError(t, h.ctrl.RetakeAssessment(h.ctx, "loops"))
	s := h.snapshot()
	assert.Equal(t, state.ViewDashboard, s.View)
	assert.Nil(t, s.Result)
	assert.Equal(t, state.ScreenLoading, s.Screen())
	require.ErrorIs(t, h.ctrl.RetakeAssessment(h.ctx, "loops"), ErrBusy)
}

func TestAssessmentFrameFromAnyView(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.SendChat(h.ctx, "quiz me"))
	assert.True(t, h.snapshot().Flags.AIThinking)

	h.serverSends(threeQuestionAssessment)
	s := h.await("assessment", func(s state.State) bool { return s.View == state.ViewAssessment })
	assert.False(t, s.Flags.AIThinking)
	assert.False(t, s.Flags.LoadingAssessment)
}

func TestSendWhileDisconnectedRetriesOnceThenDrops(t *testing.T) {
	h := newHarness(t)
	h.dialer.setRefuse(true)

	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	h.awaitConn(transport.Disconnected)

	require.NoError(t, h.ctrl.SendChat(h.ctx, "hello?"))
	pending, err := h.ctrl.PendingSends(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	s := h.snapshot()
	assert.Empty(t, s.Messages, "nothing is appended before the message is sent")
	assert.False(t, s.Flags.AIThinking)

	h.awaitConn(transport.Disconnected)
	h.clock.Advance(3 * time.Second)

	s = h.await("undelivered notice never recorded", func(s state.State) bool { return len(s.Notices) == 1 })
	assert.Equal(t, state.NoticeUndelivered, s.Notices[0].Kind)
	assert.Contains(t, s.Notices[0].Text, "hello?")
	assert.Empty(t, s.Messages)

	pending, err = h.ctrl.PendingSends(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	// The action is never retried again, even once the server is reachable.
	h.awaitConn(transport.Disconnected)
	h.dialer.setRefuse(false)
	h.clock.Advance(2 * time.Second)
	h.await("reconnect never succeeded", func(s state.State) bool { return s.Connected })
	assert.Empty(t, h.dialer.latest().frames())
	assert.Len(t, h.snapshot().Notices, 1)
}

func TestDeferredSendFlushedOnOpen(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.dialer.gate = gate

	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, h.ctrl.SendChat(h.ctx, "queued"))
	assert.Equal(t, transport.Connecting, h.connState(), "a dial already in flight is reused")

	close(gate)
	h.await("queued message never sent", func(s state.State) bool { return len(s.Messages) == 1 })
	frames := h.sent(1)
	assert.Equal(t, "queued", frames[0]["content"])

	h.clock.Advance(3 * time.Second)
	h.flush()
	assert.Len(t, h.dialer.latest().frames(), 1, "the cancelled timer must not send again")
	assert.Empty(t, h.snapshot().Notices)
}

func TestSecondSendRefusedWhileDeferred(t *testing.T) {
	h := newHarness(t)
	h.dialer.setRefuse(true)

	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	h.awaitConn(transport.Disconnected)

	require.NoError(t, h.ctrl.SendChat(h.ctx, "first"))
	err = h.ctrl.SendChat(h.ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, h.ctrl.SendChat(h.ctx, "third"), ErrBusy)

	pending, err := h.ctrl.PendingSends(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	h.awaitConn(transport.Disconnected)
	h.dialer.setRefuse(false)
	h.clock.Advance(2 * time.Second)
	h.await("deferred message never sent", func(s state.State) bool { return len(s.Messages) == 1 })
	frames := h.sent(1)
	h.flush()
	assert.Len(t, h.dialer.latest().frames(), 1, "only one message request may be in flight")
	assert.Equal(t, "first", frames[0]["content"])
	assert.True(t, h.snapshot().Flags.AIThinking)

	assert.ErrorIs(t, h.ctrl.SendChat(h.ctx, "fourth"), ErrBusy, "the thinking flag now guards chat")
}

func TestSendWhileOpenIsImmediate(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")

	require.NoError(t, h.ctrl.SendChat(h.ctx, "  hi  "))
	pending, err := h.ctrl.PendingSends(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	frames := h.sent(1)
	assert.Equal(t, "hi", frames[0]["content"])
}

func TestLocalValidation(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.ctrl.SendChat(h.ctx, "hello"), ErrSignedOut)

	h.loginConnected("alice")

	require.ErrorIs(t, h.ctrl.SendChat(h.ctx, "   \n\t"), ErrEmptyMessage)
	require.ErrorIs(t, h.ctrl.Submit(h.ctx), ErrInvalidView)
	require.ErrorIs(t, h.ctrl.Answer(h.ctx, "q1", "A"), ErrInvalidView)
	require.ErrorIs(t, h.ctrl.AcceptOffer(h.ctx, " "), ErrEmptyTopic)
	require.ErrorIs(t, h.ctrl.ContinueLearning(h.ctx), ErrInvalidView)
	require.ErrorIs(t, h.ctrl.LeaveAssessment(h.ctx), ErrInvalidView)

	require.NoError(t, h.ctrl.SendChat(h.ctx, "first"))
	require.ErrorIs(t, h.ctrl.SendChat(h.ctx, "second"), ErrBusy)

	frames := h.sent(1)
	assert.Len(t, frames, 1, "rejected actions must not transmit")

	_, err := h.ctrl.Login(h.ctx, "bob")
	require.ErrorIs(t, err, ErrAlreadySignedIn)
}

func TestAnswerValidation(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))
	h.serverSends(threeQuestionAssessment)
	h.await("assessment", func(s state.State) bool { return s.View == state.ViewAssessment })

	require.ErrorIs(t, h.ctrl.Answer(h.ctx, "q9", "A"), ErrUnknownQuestion)
	require.ErrorIs(t, h.ctrl.Answer(h.ctx, "q1", "E"), ErrUnknownOption)
	assert.Empty(t, h.snapshot().Answers)

	require.NoError(t, h.ctrl.Answer(h.ctx, "q1", "A"))
	require.NoError(t, h.ctrl.LeaveAssessment(h.ctx))
	s := h.snapshot()
	assert.Equal(t, state.ViewDashboard, s.View)
	assert.Nil(t, s.Assessment)
	assert.Nil(t, s.Answers)
}

func TestAcceptOfferRequiresConnection(t *testing.T) {
	h := newHarness(t)
	h.dialer.setRefuse(true)
	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	h.awaitConn(transport.Disconnected)

	require.ErrorIs(t, h.ctrl.AcceptOffer(h.ctx, "recursion"), ErrNotConnected)
	assert.False(t, h.snapshot().Flags.LoadingAssessment)
	require.ErrorIs(t, h.ctrl.ReviewLesson(h.ctx, "recursion"), ErrNotConnected)
}

func TestLogoutFromAnyView(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))
	h.serverSends(threeQuestionAssessment)
	h.await("assessment", func(s state.State) bool { return s.View == state.ViewAssessment })
	require.NoError(t, h.ctrl.Answer(h.ctx, "q1", "A"))
	require.NoError(t, h.ctrl.Submit(h.ctx))
	first := h.dialer.latest()

	require.NoError(t, h.ctrl.Logout(h.ctx))

	s := h.snapshot()
	assert.Equal(t, state.ViewLogin, s.View)
	assert.Equal(t, state.ScreenLogin, s.Screen())
	assert.Empty(t, s.Messages)
	assert.Equal(t, state.Flags{}, s.Flags)
	assert.Nil(t, s.Session)
	assert.Nil(t, s.Assessment)
	assert.Nil(t, s.Answers)
	assert.Equal(t, transport.Disconnected, h.connState())
	assert.Nil(t, h.store.saved())

	dials := h.dialer.dials()
	h.clock.Advance(time.Minute)
	h.flush()
	assert.Equal(t, dials, h.dialer.dials(), "no reconnect after logout")
	assert.Eventually(t, func() bool {
		select {
		case <-first.closed:
			return true
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)

	// A late frame from the torn-down connection changes nothing.
	first.in <- []byte(`{"type":"message","content":"too late"}`)
	h.flush()
	assert.Empty(t, h.snapshot().Messages)
}

func TestLogoutCancelsDeferredSends(t *testing.T) {
	h := newHarness(t)
	h.dialer.setRefuse(true)
	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, h.ctrl.SendChat(h.ctx, "pending"))

	require.NoError(t, h.ctrl.Logout(h.ctx))
	pending, err := h.ctrl.PendingSends(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	h.clock.Advance(time.Minute)
	h.flush()
	assert.Equal(t, transport.Disconnected, h.connState())
	assert.Empty(t, h.snapshot().Notices)
}

func TestReconnectAfterDrop(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	first := h.dialer.latest()

	close(first.in)
	h.await("drop never noticed", func(s state.State) bool { return !s.Connected })
	h.awaitConn(transport.Disconnected)

	h.clock.Advance(time.Second)
	h.flush()
	assert.Equal(t, 1, h.dialer.dials(), "reconnect waits for the configured delay")

	h.clock.Advance(time.Second)
	h.await("never reconnected", func(s state.State) bool { return s.Connected })
	assert.Equal(t, 2, h.dialer.dials())
	assert.NotSame(t, first, h.dialer.latest())
}

func TestRestoreOpensEagerly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SaveSession(h.ctx, &domain.Session{UserID: "user_alice", Username: "alice", Token: "tok"}))

	restored, err := h.ctrl.Restore(h.ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, state.ViewDashboard, h.snapshot().View)
	h.await("never connected", func(s state.State) bool { return s.Connected })
}

func TestRestoreWithoutSessionStaysOnLogin(t *testing.T) {
	h := newHarness(t)

	restored, err := h.ctrl.Restore(h.ctx)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, state.ViewLogin, h.snapshot().View)
	assert.Zero(t, h.dialer.dials())
}

func TestMalformedFrameIsDroppedAndWatchdogRecovers(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.SendChat(h.ctx, "hello"))

	h.serverSends(`{"type":"message","content":`)
	h.serverSends(`{"type":"hologram","content":"from the future"}`)
	h.flush()
	s := h.snapshot()
	assert.True(t, s.Flags.AIThinking, "a dropped reply leaves the flag set")
	assert.Len(t, s.Messages, 1)

	h.clock.Advance(90 * time.Second)
	s = h.await("watchdog never fired", func(s state.State) bool { return !s.Flags.AIThinking })
	require.Len(t, s.Notices, 1)
	assert.Equal(t, state.NoticeTimeout, s.Notices[0].Kind)

	require.NoError(t, h.ctrl.SendChat(h.ctx, "again"))
}

func TestWatchdogDisarmedByResponse(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.SendChat(h.ctx, "hello"))
	h.serverSends(`{"type":"message","content":"hi"}`)
	h.await("reply", func(s state.State) bool { return !s.Flags.AIThinking })

	h.clock.Advance(2 * time.Minute)
	h.flush()
	assert.Empty(t, h.snapshot().Notices)
}

func TestServerErrorClearsFlags(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")
	require.NoError(t, h.ctrl.AcceptOffer(h.ctx, "recursion"))

	h.serverSends(`{"type":"typing","content":"..."}`)
	h.serverSends(`{"type":"error","content":"generation failed"}`)
	s := h.await("error frame", func(s state.State) bool { return !s.Flags.LoadingAssessment })
	require.Len(t, s.Notices, 1)
	assert.Equal(t, state.NoticeServerError, s.Notices[0].Kind)
	assert.Equal(t, "generation failed", s.Notices[0].Text)
	assert.Equal(t, state.ScreenDashboard, s.Screen())
}

func TestConversations(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")

	require.NoError(t, h.ctrl.SendChat(h.ctx, "scratch"))
	require.NoError(t, h.ctrl.NewConversation(h.ctx))
	assert.Empty(t, h.snapshot().Messages)

	require.ErrorIs(t, h.ctrl.OpenConversation(h.ctx, "missing"), ErrUnknownConversation)
	require.NoError(t, h.ctrl.OpenConversation(h.ctx, "c1"))
	s := h.snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "Explain photosynthesis", s.Messages[0].Content)

	require.NoError(t, h.ctrl.RefreshConversations(h.ctx))
	h.await("refresh", func(s state.State) bool { return !s.ConversationsLoading })
}

func TestConversationFetchFailureLeavesPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.api.err = errors.New("service unavailable")

	_, err := h.ctrl.Login(h.ctx, "alice")
	require.NoError(t, err)
	s := h.await("connect", func(s state.State) bool { return s.Connected })
	assert.True(t, s.ConversationsLoading)
	assert.Empty(t, s.Conversations)
}

func TestAnalyticsOverlay(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")

	require.NoError(t, h.ctrl.ShowAnalytics(h.ctx))
	s := h.await("analytics", func(s state.State) bool { return s.Analytics != nil })
	assert.True(t, s.ShowAnalytics)
	assert.Equal(t, 3, s.Analytics.TotalLessons)

	require.NoError(t, h.ctrl.HideAnalytics(h.ctx))
	assert.False(t, h.snapshot().ShowAnalytics)

	h.api.mu.Lock()
	h.api.err = errors.New("down")
	h.api.mu.Unlock()
	require.NoError(t, h.ctrl.ShowAnalytics(h.ctx))
	h.flush()
	s = h.snapshot()
	assert.True(t, s.ShowAnalytics)
	assert.Nil(t, s.Analytics, "a failed fetch leaves the loading placeholder")
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	h := newHarness(t)
	views := make(chan state.View, 128)
	h.ctrl.OnChange(func(s state.State) { views <- s.View })

	h.loginConnected("alice")
	require.NoError(t, h.ctrl.Logout(h.ctx))

	var seen []state.View
	for len(views) > 0 {
		seen = append(seen, <-views)
	}
	assert.Contains(t, seen, state.ViewDashboard)
	assert.Equal(t, state.ViewLogin, seen[len(seen)-1])
}

func TestSnapshotGivesUpWhenContextEnds(t *testing.T) {
	h := newHarness(t)
	h.loginConnected("alice")

	release := make(chan struct{})
	require.True(t, h.ctrl.loop.Post(func() { <-release }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := h.ctrl.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, s.Session, "a cancelled query returns the zero state")

	n, err := h.ctrl.PendingSends(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	close(release)
	assert.Equal(t, "alice", h.snapshot().Session.Username)
}
