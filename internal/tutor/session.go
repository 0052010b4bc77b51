package tutor

import (
	"context"
	"fmt"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/identity"
	"github.com/ashureev/tutor-client/internal/state"
)

// Restore signs in with the persisted session, if there is one, and opens
// the connection eagerly. It reports whether a session was restored.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	session, err := c.store.LoadSession(ctx)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	err = c.do(ctx, func() error {
		if c.state.SignedIn() {
			return ErrAlreadySignedIn
		}
		c.signIn(session)
		return nil
	})
	if err != nil {
		return false, err
	}
	c.logger.Info("session restored", "user_id", session.UserID)
	return true, nil
}

// Login creates a session for username, persists it, shows the dashboard
// and opens the connection.
func (c *Controller) Login(ctx context.Context, username string) (*domain.Session, error) {
	var signedIn bool
	if err := c.loop.Call(ctx, func() { signedIn = c.state.SignedIn() }); err != nil {
		return nil, err
	}
	if signedIn {
		return nil, ErrAlreadySignedIn
	}

	session, err := identity.NewSession(username, c.loop.Clock().Now())
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.SaveSession(ctx, session); err != nil {
			return nil, fmt.Errorf("persist session: %w", err)
		}
	}

	err = c.do(ctx, func() error {
		if c.state.SignedIn() {
			return ErrAlreadySignedIn
		}
		c.signIn(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("logged in", "user_id", session.UserID)
	return session, nil
}

func (c *Controller) signIn(session *domain.Session) {
	c.beginEpoch()
	c.apply(state.LoggedIn{Session: *session})
	c.conn.Open(c.state.Session)
}

// Logout closes the connection without reconnecting, cancels every pending
// timer, resets the state to the login view and clears the persisted
// session.
func (c *Controller) Logout(ctx context.Context) error {
	var userID string
	err := c.do(ctx, func() error {
		if c.state.Session != nil {
			userID = c.state.Session.UserID
		}
		c.teardown()
		c.apply(state.LoggedOut{})
		return nil
	})
	if err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.ClearSession(ctx); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}
	c.logger.Info("logged out", "user_id", userID)
	return nil
}
