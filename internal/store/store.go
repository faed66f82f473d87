// Package store persists the email allow-list that gates every login.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors surfaced to the admin API.
var (
	ErrExists    = errors.New("store: user already exists")
	ErrNotFound  = errors.New("store: user not found")
	ErrLastAdmin = errors.New("store: cannot remove the last admin")
)

// AllowedUser is one allow-list entry. Email is the unique key and is
// always stored lower-cased so lookups are case-insensitive.
type AllowedUser struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	IsAdmin   bool       `json:"isAdmin"`
	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

// Store is the allow-list registry plus the small config K/V area used by
// setup (operator passcode, initialized flag). Implementations are safe
// for concurrent use.
type Store interface {
	GetUser(ctx context.Context, email string) (AllowedUser, bool, error)
	ListUsers(ctx context.Context) ([]AllowedUser, error)
	AddUser(ctx context.Context, email, name string, isAdmin bool) (AllowedUser, error)
	// SetAdmin flips the admin flag. Demoting the last remaining admin
	// fails with ErrLastAdmin.
	SetAdmin(ctx context.Context, email string, isAdmin bool) error
	// RemoveUser deletes an entry. Removing the last remaining admin
	// fails with ErrLastAdmin and leaves the list unchanged.
	RemoveUser(ctx context.Context, email string) error
	// TouchLastLogin refreshes the lastLogin timestamp. Missing entries
	// are a no-op, not an error.
	TouchLastLogin(ctx context.Context, email string, when time.Time) error
	// ReplaceAll swaps the whole list in one transaction (snapshot import).
	ReplaceAll(ctx context.Context, users []AllowedUser) error

	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value string) error
	IsInitialized(ctx context.Context) (bool, error)
	SetInitialized(ctx context.Context) error

	Close() error
}
