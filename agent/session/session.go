// Package session owns the ordered conversation history and the
// currently-active agent for one conversation. The session is the single
// source of truth mutated by the router; the manager serializes in-flight
// queries per session id.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNotFound       = errors.New("session not found")
)

// Session is the conversation-scoped container of turns and active-agent
// state. Turns are append-only; Seq is assigned monotonically at append time
// so replaying a fixed event sequence reproduces identical ordering.
type Session struct {
	ID          string          `json:"id"`
	Turns       []contract.Turn `json:"turns"`
	ActiveAgent string          `json:"active_agent"`
	Handoffs    int             `json:"handoffs"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func New(id, entryAgent string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:          id,
		ActiveAgent: entryAgent,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Append records one turn in causal order and returns it.
func (s *Session) Append(role contract.Role, content, agentID, toolName string) contract.Turn {
	turn := contract.Turn{
		ID:       uuid.NewString(),
		Seq:      len(s.Turns),
		Role:     role,
		Content:  content,
		AgentID:  agentID,
		ToolName: toolName,
		At:       time.Now().UTC(),
	}
	s.Turns = append(s.Turns, turn)
	s.UpdatedAt = turn.At
	return turn
}

// RecordHandoff transfers conversation ownership to the target agent.
func (s *Session) RecordHandoff(target string) {
	s.Handoffs++
	s.ActiveAgent = target
	s.UpdatedAt = time.Now().UTC()
}

// History returns a copy of the turn sequence.
func (s *Session) History() []contract.Turn {
	out := make([]contract.Turn, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// Snapshot captures the session for rollback. A cancelled query restores the
// snapshot so no partially-appended history is left behind.
func (s *Session) Snapshot() *Session {
	snap := *s
	snap.Turns = make([]contract.Turn, len(s.Turns))
	copy(snap.Turns, s.Turns)
	return &snap
}

// Restore rewinds the session to a snapshot taken earlier.
func (s *Session) Restore(snap *Session) {
	if snap == nil {
		return
	}
	s.Turns = make([]contract.Turn, len(snap.Turns))
	copy(s.Turns, snap.Turns)
	s.ActiveAgent = snap.ActiveAgent
	s.Handoffs = snap.Handoffs
	s.UpdatedAt = snap.UpdatedAt
}
