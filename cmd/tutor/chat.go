package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ashureev/tutor-client/internal/api"
	"github.com/ashureev/tutor-client/internal/config"
	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/state"
	"github.com/ashureev/tutor-client/internal/tutor"
)

const chatHelp = `commands:
  <text>                 send a chat message
  /quiz [topic]          take the assessment offered for topic (default: last offer)
  /answer <q> <option>   choose an option, e.g. /answer q1 B
  /submit                hand in the assessment
  /back                  leave the assessment
  /continue              leave the result screen
  /again                 leave the result screen and re-learn the topic
  /retake                take the same assessment topic again
  /review <topic>        ask for a review of a lesson
  /new                   start a new conversation
  /history               list past conversations
  /open <n>              open past conversation n
  /stats, /hide          show or hide analytics
  /logout                sign out and forget the session
  /quit                  exit, keeping the session`

func newChatCmd(a *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session",
		Long:  "Restores the saved session (or signs in with --user) and opens the tutor connection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd, username)
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "sign in as this user when no session is saved")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, username string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := a.openStore()
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("session store health check: %w", err)
	}

	m := metrics.New()
	if a.cfg.MetricsAddr != "" {
		srv := a.serveMetrics(m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := tutor.OptionsFromConfig(a.cfg)
	opts.Store = repo
	opts.API = api.NewClient(a.cfg.APIURL, a.cfg.Timeouts.HTTP, m, a.logger)
	opts.Metrics = m
	opts.Logger = a.logger
	ctrl := tutor.New(opts)
	a.logger.Info("Starting chat", "ws_url", a.cfg.WSURL, "dev", a.cfg.IsDevelopment())

	out := newRenderer(cmd.OutOrStdout())
	ctrl.OnChange(out.Render)

	// The loop outlives the signal context so Shutdown can still close the
	// socket after Ctrl-C.
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- ctrl.Run(loopCtx) }()

	restored, err := ctrl.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		if username == "" {
			return errors.New("not signed in: run `tutor login <username>` or pass --user")
		}
		if _, err := ctrl.Login(ctx, username); err != nil {
			return err
		}
	}
	if hint := localServerHint(a.cfg); hint != "" {
		fmt.Fprintln(cmd.OutOrStdout(), hint)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "type /help for commands")

	lines := readLines(cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return a.shutdown(ctrl)
		case err := <-loopErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return a.shutdown(ctrl)
			}
			c, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				continue
			}
			quit, err := c.run(ctx, ctrl, out, cmd.OutOrStdout())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			if quit {
				return a.shutdown(ctrl)
			}
		}
	}
}

func (a *app) shutdown(ctrl *tutor.Controller) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Shutdown(ctx); err != nil {
		a.logger.Warn("Shutdown incomplete", "error", err)
	}
	return nil
}

func (a *app) serveMetrics(m *metrics.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("Metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// command is one parsed line of learner input.
type command struct {
	name string
	args []string
	text string
}

var errUsage = errors.New("unknown command, type /help")

func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errors.New("nothing to send")
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", text: line}, nil
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return command{}, errUsage
	}
	c := command{name: strings.ToLower(fields[0]), args: fields[1:]}
	c.text = strings.TrimSpace(strings.TrimPrefix(line[1:], fields[0]))

	switch c.name {
	case "answer":
		if len(c.args) != 2 {
			return command{}, errors.New("usage: /answer <question> <option>")
		}
	case "open":
		if len(c.args) != 1 {
			return command{}, errors.New("usage: /open <n>")
		}
		if n, err := strconv.Atoi(c.args[0]); err != nil || n < 1 {
			return command{}, errors.New("usage: /open <n>, n counts from 1")
		}
	case "review":
		if c.text == "" {
			return command{}, errors.New("usage: /review <topic>")
		}
	case "quiz", "submit", "back", "continue", "again", "retake", "new", "history",
		"stats", "hide", "logout", "quit", "exit", "help":
	default:
		return command{}, errUsage
	}
	return c, nil
}

func (c command) run(ctx context.Context, ctrl *tutor.Controller, r *renderer, out io.Writer) (bool, error) {
	switch c.name {
	case "say":
		return false, ctrl.SendChat(ctx, c.text)
	case "quiz":
		topic := c.text
		if topic == "" {
			s, err := ctrl.Snapshot(ctx)
			if err != nil {
				return false, err
			}
			topic = lastOfferTopic(s)
		}
		return false, ctrl.AcceptOffer(ctx, topic)
	case "answer":
		return false, ctrl.Answer(ctx, c.args[0], c.args[1])
	case "submit":
		return false, ctrl.Submit(ctx)
	case "back":
		return false, ctrl.LeaveAssessment(ctx)
	case "continue":
		return false, ctrl.ContinueLearning(ctx)
	case "again":
		return false, ctrl.TakeLessonAgain(ctx)
	case "retake":
		s, err := ctrl.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		topic := c.text
		if topic == "" && s.Result != nil {
			topic = s.Result.Topic
		}
		return false, ctrl.RetakeAssessment(ctx, topic)
	case "review":
		return false, ctrl.ReviewLesson(ctx, c.text)
	case "new":
		return false, ctrl.NewConversation(ctx)
	case "history":
		if err := ctrl.RefreshConversations(ctx); err != nil {
			return false, err
		}
		s, err := ctrl.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		r.conversations(s.Conversations, s.ConversationsLoading)
		return false, nil
	case "open":
		n, _ := strconv.Atoi(c.args[0])
		s, err := ctrl.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		if n > len(s.Conversations) {
			return false, tutor.ErrUnknownConversation
		}
		return false, ctrl.OpenConversation(ctx, s.Conversations[n-1].ID)
	case "stats":
		return false, ctrl.ShowAnalytics(ctx)
	case "hide":
		return false, ctrl.HideAnalytics(ctx)
	case "logout":
		return true, ctrl.Logout(ctx)
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(out, chatHelp)
	}
	return false, nil
}

// localServerHint reminds the learner how to bring up a local tutor when the
// client points at one.
func localServerHint(cfg *config.Config) string {
	if !cfg.IsDevelopment() {
		return ""
	}
	return fmt.Sprintf("· tutor at %s, run `tutor stub` if nothing is listening", cfg.WSURL)
}

// lastOfferTopic returns the topic of the most recent assessment offer.
func lastOfferTopic(s state.State) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Kind == domain.KindAssessmentOffer {
			return s.Messages[i].Topic
		}
	}
	return ""
}
