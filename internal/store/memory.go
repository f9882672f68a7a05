package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process store for local runs and tests. Expired
// records are invisible to Find and removed by DeleteExpired.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]User
	conversations map[string]Conversation
	expiry        Expiry
	now           func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(expiry Expiry, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:         make(map[string]User),
		conversations: make(map[string]Conversation),
		expiry:        expiry,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) FindUser(_ context.Context, phone string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok || !u.CreatedAt.After(s.expiry.UserCutoff(s.now())) {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, phone string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := newUser(phone, s.now())
	s.users[phone] = *u
	return u, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.PhoneNumber] = *user
	return nil
}

func (s *MemoryStore) FindConversation(_ context.Context, user string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[user]
	if !ok || !c.CreatedAt.After(s.expiry.ConversationCutoff(s.now())) {
		return nil, nil
	}
	c.Messages = cloneMessages(c.Messages)
	return &c, nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, user string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := newConversation(user, s.now())
	s.conversations[user] = *c
	return c, nil
}

func (s *MemoryStore) SaveConversation(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conv
	c.Messages = cloneMessages(conv.Messages)
	s.conversations[conv.User] = c
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	userCutoff := s.expiry.UserCutoff(now)
	for phone, u := range s.users {
		if !u.CreatedAt.After(userCutoff) {
			delete(s.users, phone)
			removed++
		}
	}
	convCutoff := s.expiry.ConversationCutoff(now)
	for user, c := range s.conversations {
		if !c.CreatedAt.After(convCutoff) {
			delete(s.conversations, user)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored users and conversations, expired or not.
func (s *MemoryStore) Len() (users, conversations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.conversations)
}

func (s *MemoryStore) Close() error { return nil }
