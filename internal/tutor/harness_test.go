package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/eventloop"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/state"
	"github.com/ashureev/tutor-client/internal/transport"
)

// fakeConn is the client end of an in-memory tutor connection.
type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.writes))
	for _, w := range c.writes {
		var m map[string]interface{}
		_ = json.Unmarshal(w, &m)
		out = append(out, m)
	}
	return out
}

type fakeDialer struct {
	mu     sync.Mutex
	refuse bool
	gate   chan struct{}
	urls   []string
	conns  []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	refuse, gate := d.refuse, d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if refuse {
		return nil, errors.New("connection refused")
	}

	c := &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) setRefuse(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refuse = v
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) latest() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type memStore struct {
	mu      sync.Mutex
	session *domain.Session
}

func (s *memStore) LoadSession(context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *memStore) SaveSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.session = &cp
	return nil
}

func (s *memStore) ClearSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

func (s *memStore) saved() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

type fakeAPI struct {
	mu            sync.Mutex
	conversations []domain.ConversationSummary
	analytics     *domain.Analytics
	err           error
}

func (a *fakeAPI) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.conversations, nil
}

func (a *fakeAPI) Analytics(ctx context.Context, userID string) (*domain.Analytics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.analytics, nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *eventloop.ManualClock
	dialer *fakeDialer
	store  *memStore
	api    *fakeAPI
	ctrl   *Controller
}

const waitFor = 2 * time.Second

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clock:  eventloop.NewManualClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)),
		dialer: &fakeDialer{},
		store:  &memStore{},
		api: &fakeAPI{
			conversations: []domain.ConversationSummary{
				{ID: "c1", Title: "Photosynthesis", Topic: "Photosynthesis", ChatHistory: []domain.ChatMessage{
					{ID: "m1", Kind: domain.KindUser, Content: "Explain photosynthesis"},
					{ID: "m2", Kind: domain.KindTutor, Content: "Plants turn light into sugar."},
				}},
			},
			analytics: &domain.Analytics{TotalLessons: 3, AssessmentsTaken: 1, AverageScore: 100, PassRate: 100},
		},
	}

	opts := Options{
		WSURL:             "ws://tutor.test",
		BackOff:           backoff.NewConstantBackOff(2 * time.Second),
		DeferredSendDelay: 3 * time.Second,
		RequestTimeout:    90 * time.Second,
		FetchTimeout:      time.Second,
		Clock:             h.clock,
		Dialer:            h.dialer,
		Store:             h.store,
		API:               h.api,
		Metrics:           metrics.New(),
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.ctrl = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	go h.ctrl.Run(ctx)
	t.Cleanup(cancel)
	h.ctx = context.Background()
	return h
}

func (h *harness) snapshot() state.State {
	h.t.Helper()
	s, err := h.ctrl.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return s
}

// await polls snapshots until cond holds.
func (h *harness) await(msg string, cond func(state.State) bool) state.State {
	h.t.Helper()
	var last state.State
	require.Eventually(h.t, func() bool {
		s, err := h.ctrl.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = s
		return cond(s)
	}, waitFor, 5*time.Millisecond, msg)
	return last
}

// flush waits until every closure posted so far has run.
func (h *harness) flush() {
	h.t.Helper()
	h.snapshot()
}

func (h *harness) loginConnected(username string) {
	h.t.Helper()
	_, err := h.ctrl.Login(h.ctx, username)
	require.NoError(h.t, err)
	h.await("connection never opened", func(s state.State) bool { return s.Connected })
	h.await("conversations never loaded", func(s state.State) bool { return !s.ConversationsLoading })
}

func (h *harness) serverSends(frame string) {
	h.t.Helper()
	conn := h.dialer.latest()
	require.NotNil(h.t, conn, "no connection to send on")
	conn.in <- []byte(frame)
}

// sent waits for the client to have written n frames on the latest connection.
func (h *harness) sent(n int) []map[string]interface{} {
	h.t.Helper()
	conn := h.dialer.latest()
	require.NotNil(h.t, conn)
	require.Eventually(h.t, func() bool { return len(conn.frames()) >= n }, waitFor, 5*time.Millisecond,
		"expected %d outbound frames", n)
	return conn.frames()
}

func (h *harness) connState() transport.State {
	h.t.Helper()
	s, err := h.ctrl.ConnectionState(h.ctx)
	require.NoError(h.t, err)
	return s
}

const threeQuestionAssessment = `{"type":"assessment","assessment":{"id":"a1","topic":"recursion","questions":[
	{"id":"q1","question":"What is a base case?","options":["A","B","C","D"]},
	{"id":"q2","question":"What happens without one?","options":["A","B","C","D"]},
	{"id":"q3","question":"Which structure does recursion use?","options":["A","B","C","D"]}]}}`
