// Package store persists users and their conversations. Every backend
// expires records on its own once they outlive the configured Expiry.
package store

import (
	"context"
	"fmt"
	"time"
)

// Repository is the record store used by the chat flow. Find methods return
// (nil, nil) when no live record exists.
type Repository interface {
	FindUser(ctx context.Context, phone string) (*User, error)
	CreateUser(ctx context.Context, phone string) (*User, error)
	SaveUser(ctx context.Context, user *User) error

	FindConversation(ctx context.Context, user string) (*Conversation, error)
	CreateConversation(ctx context.Context, user string) (*Conversation, error)
	SaveConversation(ctx context.Context, conv *Conversation) error

	Close() error
}

// Sweepable is implemented by every backend. DeleteExpired
// removes every record older than its kind's TTL and returns how many went.
type Sweepable interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// FindOrCreateUser returns the live user for phone, creating it if needed.
// created is true when a new record was made.
func FindOrCreateUser(ctx context.Context, r Repository, phone string) (user *User, created bool, err error) {
	user, err = r.FindUser(ctx, phone)
	if err != nil {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, false, nil
	}
	user, err = r.CreateUser(ctx, phone)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

// FindOrCreateConversation returns the live conversation for user, creating
// an empty one if needed.
func FindOrCreateConversation(ctx context.Context, r Repository, user string) (conv *Conversation, created bool, err error) {
	conv, err = r.FindConversation(ctx, user)
	if err != nil {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}
	if conv != nil {
		return conv, false, nil
	}
	conv, err = r.CreateConversation(ctx, user)
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}
