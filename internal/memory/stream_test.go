package memory

import (
	"testing"
	"time"
)

func TestAddClampsImportance(t *testing.T) {
	s := New(nil)
	s.Add("hello", 0, Observation)
	s.Add("world", 99, Observation)
	recent := s.GetRecent(2)
	if recent[0].Importance != 1 {
		t.Fatalf("expected clamp to 1, got %d", recent[0].Importance)
	}
	if recent[1].Importance != 10 {
		t.Fatalf("expected clamp to 10, got %d", recent[1].Importance)
	}
}

func TestAddCompactsOnOverflow(t *testing.T) {
	s := New(nil)
	for i := 0; i < Max+10; i++ {
		s.Add("entry", (i%10)+1, Observation)
	}
	// The 101st add compacts the stream to compactTo; the 9 adds after it
	// append without another compaction.
	if s.Len() != compactTo+9 {
		t.Fatalf("expected compaction to %d entries plus 9 later adds, got %d", compactTo, s.Len())
	}
}

func TestGetRecentOrderAndBounds(t *testing.T) {
	s := New(nil)
	s.Add("first", 5, Observation)
	s.Add("second", 5, Observation)
	s.Add("third", 5, Observation)
	recent := s.GetRecent(2)
	if len(recent) != 2 || recent[0].Text != "second" || recent[1].Text != "third" {
		t.Fatalf("unexpected recent order: %+v", recent)
	}
	if got := s.GetRecent(100); len(got) != 3 {
		t.Fatalf("expected clamp to stream length, got %d", len(got))
	}
}

func TestRetrieveScoresByRelevanceImportanceRecency(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s := New(func() time.Time { return clock })

	s.Add("spotted a wolf near the river", 3, Observation)
	clock = clock.Add(1 * time.Hour)
	s.Add("found a sword on the ground", 9, Observation)
	clock = clock.Add(1 * time.Hour)

	top := s.Retrieve("sword", 1)
	if len(top) != 1 || top[0].Text != "found a sword on the ground" {
		t.Fatalf("expected the sword memory to rank first, got %+v", top)
	}
}

func TestRetrieveTopKClampsToLength(t *testing.T) {
	s := New(nil)
	s.Add("a", 5, Observation)
	got := s.Retrieve("a", 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
}
