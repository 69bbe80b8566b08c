// Package memory holds the session-scoped and durable key/value context
// consulted before planning. Relevance is a case-insensitive token-overlap
// test; this is a deliberate placeholder for a semantic-similarity lookup and
// keeps the original retrieval contract: any overlap qualifies.
package memory

import (
	"fmt"
	"strings"
	"sync"
)

type entry struct {
	key   string
	value any
}

// Store keeps two tiers: short-term (cleared on reset, never persisted) and
// long-term (lives for the process, survives conversation resets). Keys are
// unique per tier; insertion order is preserved for enumeration.
type Store struct {
	mu        sync.RWMutex
	shortTerm []entry
	longTerm  []entry
	shortIdx  map[string]int
	longIdx   map[string]int
}

func NewStore() *Store {
	return &Store{
		shortIdx: make(map[string]int),
		longIdx:  make(map[string]int),
	}
}

func (s *Store) AddShortTerm(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.shortIdx[key]; ok {
		s.shortTerm[i].value = value
		return
	}
	s.shortIdx[key] = len(s.shortTerm)
	s.shortTerm = append(s.shortTerm, entry{key: key, value: value})
}

func (s *Store) AddLongTerm(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.longIdx[key]; ok {
		s.longTerm[i].value = value
		return
	}
	s.longIdx[key] = len(s.longTerm)
	s.longTerm = append(s.longTerm, entry{key: key, value: value})
}

// RelevantContext returns every entry whose rendered value shares at least one
// whitespace token with the query, case-insensitively. Always returns a
// (possibly empty) map; there are no error conditions.
func (s *Store) RelevantContext(query string) map[string]any {
	tokens := strings.Fields(strings.ToLower(query))
	relevant := make(map[string]any)
	if len(tokens) == 0 {
		return relevant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tier := range [][]entry{s.shortTerm, s.longTerm} {
		for _, e := range tier {
			rendered := strings.ToLower(fmt.Sprint(e.value))
			for _, tok := range tokens {
				if strings.Contains(rendered, tok) {
					relevant[e.key] = e.value
					break
				}
			}
		}
	}
	return relevant
}

// Stats reports the entry count per tier.
func (s *Store) Stats() (shortTerm, longTerm int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shortTerm), len(s.longTerm)
}

// ResetShortTerm clears the session-scoped tier. Long-term entries are kept.
func (s *Store) ResetShortTerm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = nil
	s.shortIdx = make(map[string]int)
}

// NextShortTermKey returns a synthetic key for the next short-term record.
func (s *Store) NextShortTermKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("query_%d", len(s.shortTerm))
}
