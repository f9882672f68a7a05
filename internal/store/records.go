package store

import (
	"time"

	"github.com/google/uuid"
)

// User is created lazily on the first inbound message from a phone number.
// An empty Name means the name has not been captured yet.
type User struct {
	ID          string
	PhoneNumber string
	Name        string
	CreatedAt   time.Time
}

// HasName reports whether the user's name has been captured.
func (u *User) HasName() bool {
	return u.Name != ""
}

// Conversation is the append-only message history of one user. Entries are
// either "User: <text>" lines or raw reply text.
type Conversation struct {
	ID        string
	User      string
	Messages  []string
	CreatedAt time.Time
}

// Append adds lines to the end of the history.
func (c *Conversation) Append(lines ...string) {
	c.Messages = append(c.Messages, lines...)
}

// Expiry is the maximum age of each record kind. Age is measured from
// CreatedAt; activity never extends it.
type Expiry struct {
	User         time.Duration
	Conversation time.Duration
}

// DefaultExpiry keeps users for 3 days and conversations for 4 days.
func DefaultExpiry() Expiry {
	return Expiry{
		User:         72 * time.Hour,
		Conversation: 96 * time.Hour,
	}
}

// UserCutoff is the oldest CreatedAt a live user can have at now (exclusive).
func (e Expiry) UserCutoff(now time.Time) time.Time {
	return now.Add(-e.User)
}

// ConversationCutoff is the oldest CreatedAt a live conversation can have at now (exclusive).
func (e Expiry) ConversationCutoff(now time.Time) time.Time {
	return now.Add(-e.Conversation)
}

func newUser(phone string, now time.Time) *User {
	return &User{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		CreatedAt:   now.UTC(),
	}
}

func newConversation(user string, now time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		User:      user,
		Messages:  []string{},
		CreatedAt: now.UTC(),
	}
}

func cloneMessages(msgs []string) []string {
	out := make([]string, len(msgs))
	copy(out, msgs)
	return out
}
