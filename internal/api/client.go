package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/metrics"
)

// ErrUnexpectedStatus is wrapped when a collaborator answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

const maxBodySize = 4 << 20

// Client fetches conversation history and analytics for a user.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient creates a client for the REST collaborators rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger.With("component", "api"),
	}
}

// Conversations lists the user's past conversations.
func (c *Client) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var resp ConversationsResponse
	if err := c.get(ctx, "conversations", userID, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Analytics returns the user's learning summary.
func (c *Client) Analytics(ctx context.Context, userID string) (*domain.Analytics, error) {
	var resp domain.Analytics
	if err := c.get(ctx, "analytics", userID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, endpoint, userID string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.CollaboratorRequest(endpoint, err, time.Since(start))
		if err != nil {
			c.logger.Warn("collaborator request failed", "endpoint", endpoint, "user_id", userID, "error", err)
		}
	}()

	target := fmt.Sprintf("%s/api/%s/%s", c.baseURL, endpoint, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return fmt.Errorf("fetch %s: %w %d", endpoint, ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
