package tutor

import (
	"context"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/state"
)

// NewConversation clears the transcript.
func (c *Controller) NewConversation(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanUseDashboard(); err != nil {
			return err
		}
		c.apply(state.ConversationCleared{})
		return nil
	})
}

// OpenConversation replaces the transcript with a past conversation from
// the loaded list.
func (c *Controller) OpenConversation(ctx context.Context, id string) error {
	return c.do(ctx, func() error {
		if err := c.state.CanUseDashboard(); err != nil {
			return err
		}
		for _, conv := range c.state.Conversations {
			if conv.ID == id {
				c.apply(state.ConversationOpened{Conversation: conv})
				return nil
			}
		}
		return ErrUnknownConversation
	})
}

// RefreshConversations reloads the conversation list in the background.
func (c *Controller) RefreshConversations(ctx context.Context) error {
	return c.do(ctx, func() error {
		if !c.state.SignedIn() {
			return ErrSignedOut
		}
		c.refreshConversations()
		return nil
	})
}

func (c *Controller) refreshConversations() {
	if c.api == nil || !c.state.SignedIn() {
		return
	}
	userID := c.state.Session.UserID
	c.apply(state.ConversationsRequested{})
	fetch(c, func(ctx context.Context) ([]domain.ConversationSummary, error) {
		return c.api.Conversations(ctx, userID)
	}, func(convs []domain.ConversationSummary) {
		c.apply(state.ConversationsLoaded{Conversations: convs})
	})
}

// ShowAnalytics opens the analytics overlay and loads the numbers in the
// background. Until they arrive, or if the fetch fails, the overlay shows a
// loading placeholder.
func (c *Controller) ShowAnalytics(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.state.CanUseDashboard(); err != nil {
			return err
		}
		c.apply(state.AnalyticsRequested{})
		if c.api == nil {
			return nil
		}
		userID := c.state.Session.UserID
		fetch(c, func(ctx context.Context) (*domain.Analytics, error) {
			return c.api.Analytics(ctx, userID)
		}, func(a *domain.Analytics) {
			if a != nil {
				c.apply(state.AnalyticsLoaded{Analytics: *a})
			}
		})
		return nil
	})
}

// HideAnalytics closes the analytics overlay.
func (c *Controller) HideAnalytics(ctx context.Context) error {
	return c.do(ctx, func() error {
		if !c.state.SignedIn() {
			return ErrSignedOut
		}
		c.apply(state.AnalyticsHidden{})
		return nil
	})
}
