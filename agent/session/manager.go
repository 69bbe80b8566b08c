package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ManagerConfig governs session lifecycle.
type ManagerConfig struct {
	// EntryAgent seeds new sessions with the router agent's id.
	EntryAgent string
	// PersistAcrossQueries keeps turn history between queries on the same
	// session id. When false the session is recreated before each query.
	PersistAcrossQueries bool
}

type handle struct {
	mu sync.Mutex
	s  *Session
}

// Manager hands out sessions under a per-session lock so concurrent queries
// against the same session id are serialized, never interleaved. An optional
// Store adds durability; the in-process map remains the working copy.
type Manager struct {
	mu      sync.Mutex
	handles map[string]*handle
	cfg     ManagerConfig
	store   Store
}

func NewManager(cfg ManagerConfig, store Store) *Manager {
	if strings.TrimSpace(cfg.EntryAgent) == "" {
		cfg.EntryAgent = "triage"
	}
	return &Manager{
		handles: make(map[string]*handle),
		cfg:     cfg,
		store:   store,
	}
}

// Acquire locks the session for one in-flight query and returns it together
// with a release function. Release persists the session best-effort and must
// be called exactly once.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Session, func(), error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil, ErrInvalidSession
	}

	m.mu.Lock()
	h, ok := m.handles[sessionID]
	if !ok {
		h = &handle{}
		m.handles[sessionID] = h
	}
	m.mu.Unlock()

	h.mu.Lock()

	if h.s == nil && m.store != nil {
		loaded, err := m.store.Load(ctx, sessionID)
		switch {
		case err == nil:
			h.s = loaded
		case errors.Is(err, ErrNotFound):
		default:
			log.Warn().Err(err).Str("session_id", sessionID).Msg("session load failed, starting fresh")
		}
	}
	if h.s == nil || !m.cfg.PersistAcrossQueries {
		h.s = New(sessionID, m.cfg.EntryAgent)
	}

	s := h.s
	release := func() {
		if m.store != nil {
			if err := m.store.Save(context.Background(), s); err != nil {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("session save failed")
			}
		}
		h.mu.Unlock()
	}
	return s, release, nil
}

// Reset drops the in-memory session and its persisted copy, if any.
func (m *Manager) Reset(sessionID string) {
	m.mu.Lock()
	h, ok := m.handles[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	h.s = nil
	h.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(context.Background(), sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("session delete failed")
		}
	}
}
