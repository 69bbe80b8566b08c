package session

import (
	"context"
	"testing"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

func TestAppendAssignsCausalOrder(t *testing.T) {
	t.Parallel()

	s := New("s1", "triage")
	s.Append(contract.RoleUser, "hello", "", "")
	s.Append(contract.RoleAgent, "handoff to hardware-support", "triage", "")
	s.Append(contract.RoleTool, "doc result", "hardware-support", "get_info_support_docs")

	for i, turn := range s.Turns {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}
}

func TestSnapshotRestoreRollsBackTurns(t *testing.T) {
	t.Parallel()

	s := New("s1", "triage")
	s.Append(contract.RoleUser, "first", "", "")
	snap := s.Snapshot()

	s.Append(contract.RoleAgent, "partial", "triage", "")
	s.Handoffs = 2
	s.ActiveAgent = "web-research"

	s.Restore(snap)
	if len(s.Turns) != 1 || s.Turns[0].Content != "first" {
		t.Fatalf("restore did not rewind turns: %v", s.Turns)
	}
	if s.Handoffs != 0 || s.ActiveAgent != "triage" {
		t.Fatalf("restore did not rewind agent state: handoffs=%d agent=%s", s.Handoffs, s.ActiveAgent)
	}
}

func TestManagerResetFlagSemantics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	persisting := NewManager(ManagerConfig{EntryAgent: "triage", PersistAcrossQueries: true}, nil)
	s1, release, err := persisting.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	s1.Append(contract.RoleUser, "q1", "", "")
	firstLen := len(s1.Turns)
	release()

	s2, release, err := persisting.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(s2.Turns) != firstLen {
		t.Fatalf("persisting manager must extend history, got %d turns", len(s2.Turns))
	}
	s2.Append(contract.RoleUser, "q2", "", "")
	if s2.Turns[0].Content != "q1" {
		t.Fatal("second query history must be a strict extension of the first")
	}
	release()

	resetting := NewManager(ManagerConfig{EntryAgent: "triage", PersistAcrossQueries: false}, nil)
	r1, release, err := resetting.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	r1.Append(contract.RoleUser, "q1", "", "")
	prior := r1.Turns[0].ID
	release()

	r2, release, err := resetting.Acquire(ctx, "conv")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	for _, turn := range r2.Turns {
		if turn.ID == prior {
			t.Fatal("resetting manager must not share turns across queries")
		}
	}
	if len(r2.Turns) != 0 {
		t.Fatalf("expected fresh session, got %d turns", len(r2.Turns))
	}
}

func TestManagerPersistsThroughStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := NewManager(ManagerConfig{EntryAgent: "triage", PersistAcrossQueries: true}, store)

	s, release, err := m.Acquire(context.Background(), "conv")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	s.Append(contract.RoleUser, "remember me", "", "")
	release()

	loaded, err := store.Load(context.Background(), "conv")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Turns) != 1 || loaded.Turns[0].Content != "remember me" {
		t.Fatalf("store did not capture session: %+v", loaded)
	}
}

func TestManagerRejectsEmptySessionID(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerConfig{}, nil)
	if _, _, err := m.Acquire(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank session id")
	}
}
