// Package session holds process-lifetime transport state shared between the
// WhatsApp client and the HTTP API.
package session

import "sync"

// Session keeps the most recent pairing token. The zero value has no token.
type Session struct {
	mu    sync.RWMutex
	token string
	set   bool
}

func New() *Session {
	return &Session{}
}

// SetToken replaces the current pairing token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
}

// Token returns the latest pairing token and whether one was ever issued.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set
}
