// Package store persists the signed-in session between runs.
package store

import (
	"context"

	"github.com/ashureev/tutor-client/internal/domain"
)

// Repository defines the interface for persisting the local session record.
type Repository interface {
	// LoadSession returns the persisted session, or nil if nobody is signed in.
	LoadSession(ctx context.Context) (*domain.Session, error)

	// SaveSession replaces the persisted session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// ClearSession removes the persisted session. Clearing an empty store is not an error.
	ClearSession(ctx context.Context) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
