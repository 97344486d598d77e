// Package session keeps short-lived per-user state between chat messages.
package session

import (
	"sync"
	"time"
)

type entry struct {
	symbol  string
	expires time.Time
}

// Sessions maps a chat user to the symbol they last picked. Entries expire
// after the configured TTL.
type Sessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]entry
}

func New(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:     ttl,
		now:     time.Now,
		entries: map[int64]entry{},
	}
}

// Select remembers symbol for userID and restarts its expiry.
func (s *Sessions) Select(userID int64, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = entry{symbol: symbol, expires: s.now().Add(s.ttl)}
}

// Symbol returns the selected symbol, if one is still live.
func (s *Sessions) Symbol(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return "", false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, userID)
		return "", false
	}
	return e.symbol, true
}

// SymbolOr falls back to def when nothing is selected.
func (s *Sessions) SymbolOr(userID int64, def string) string {
	if sym, ok := s.Symbol(userID); ok {
		return sym
	}
	return def
}

func (s *Sessions) Forget(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Sweep drops every entry expired at now and returns how many were removed.
func (s *Sessions) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
