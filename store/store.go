// Package store holds the persistence boundaries: one calendar document per user
// and the user accounts.
package store

import (
	"context"
	"errors"

	"citycal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// EventStore persists and retrieves a user's full calendar document.
type EventStore interface {
	// Get returns nil and no error when the user has no document yet.
	Get(ctx context.Context, userID string) (*models.CalendarDocument, error)
	// Save replaces the user's events, creating the document on first use.
	Save(ctx context.Context, userID string, events map[string]models.DayRecord) error
}

// UserStore persists accounts for credential and GitHub sign in.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGitHubID(ctx context.Context, githubID int64) (*models.User, error)
	FindByRefreshToken(ctx context.Context, hashedToken string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
}
