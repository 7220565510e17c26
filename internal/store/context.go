package store

import (
	"time"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
)

// ContextStore holds per-identity sliding windows of conversation turns.
// It is pure storage plus truncation: the session-timeout policy lives in
// the agent controller, which clears a stale identity before appending.
type ContextStore struct {
	sessions *Keyed[[]model.Turn]
}

// NewContextStore creates an empty context store.
func NewContextStore() *ContextStore {
	return &ContextStore{sessions: NewKeyed[[]model.Turn]()}
}

// Get returns the retained turns for userID in chronological order. The
// result is a copy; mutating it does not affect the store.
func (s *ContextStore) Get(userID string) []model.Turn {
	turns, ok := s.sessions.Get(userID)
	if !ok {
		return nil
	}
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}

// GetLastUpdated returns the instant of the last write for userID.
func (s *ContextStore) GetLastUpdated(userID string) (time.Time, bool) {
	return s.sessions.LastUpdated(userID)
}

// Add appends turn for userID and retains only the most recent windowSize
// turns, oldest evicted first. A windowSize ≤ 0 leaves the window empty.
// The session's last-updated timestamp is refreshed.
func (s *ContextStore) Add(userID string, turn model.Turn, windowSize int) {
	s.sessions.Update(userID, func(turns []model.Turn, _ bool) ([]model.Turn, bool) {
		next := append(turns, turn)
		if windowSize <= 0 {
			return []model.Turn{}, true
		}
		if len(next) > windowSize {
			next = next[len(next)-windowSize:]
		}
		// Reallocate so evicted prefixes do not pin the backing array.
		out := make([]model.Turn, len(next))
		copy(out, next)
		return out, true
	})
}

// Set replaces the window for userID wholesale and refreshes the timestamp.
func (s *ContextStore) Set(userID string, turns []model.Turn) {
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	s.sessions.Set(userID, out)
}

// Clear removes the session for userID.
func (s *ContextStore) Clear(userID string) {
	s.sessions.Delete(userID)
}
