package memory

import (
	"testing"
)

func TestRelevantContextTokenOverlap(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddLongTerm("company_info", map[string]any{
		"name":      "Apple",
		"employees": 150000,
	})

	got := s.RelevantContext("Apple employees")
	if _, ok := got["company_info"]; !ok {
		t.Fatalf("expected company_info to match, got %v", got)
	}
}

func TestRelevantContextNoOverlap(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddLongTerm("company_info", map[string]any{"name": "Apple"})

	got := s.RelevantContext("weather forecast tomorrow")
	if len(got) != 0 {
		t.Fatalf("expected empty context, got %v", got)
	}
}

func TestRelevantContextEmptyQuery(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddShortTerm("a", "anything")

	if got := s.RelevantContext("   "); len(got) != 0 {
		t.Fatalf("expected empty context for blank query, got %v", got)
	}
}

func TestStatsAndReset(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddShortTerm("q1", "first")
	s.AddShortTerm("q2", "second")
	s.AddLongTerm("fact", "durable")

	short, long := s.Stats()
	if short != 2 || long != 1 {
		t.Fatalf("unexpected stats: short=%d long=%d", short, long)
	}

	s.ResetShortTerm()
	short, long = s.Stats()
	if short != 0 || long != 1 {
		t.Fatalf("reset must clear only short-term: short=%d long=%d", short, long)
	}
}

func TestAddOverwritesExistingKey(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddLongTerm("fact", "old")
	s.AddLongTerm("fact", "new value")

	_, long := s.Stats()
	if long != 1 {
		t.Fatalf("duplicate key must not grow the tier, got %d entries", long)
	}
	got := s.RelevantContext("value")
	if got["fact"] != "new value" {
		t.Fatalf("expected overwritten value, got %v", got["fact"])
	}
}

func TestNextShortTermKey(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if k := s.NextShortTermKey(); k != "query_0" {
		t.Fatalf("unexpected key %q", k)
	}
	s.AddShortTerm(s.NextShortTermKey(), "x")
	if k := s.NextShortTermKey(); k != "query_1" {
		t.Fatalf("unexpected key %q", k)
	}
}
