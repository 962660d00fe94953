// Package memory implements the bounded, scored per-agent memory stream
// (spec.md §4.3).
package memory

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Kind classifies a memory entry.
type Kind string

const (
	Observation Kind = "observation"
	Reflection  Kind = "reflection"
	Plan        Kind = "plan"
	InnerVoice  Kind = "inner_voice"
)

const (
	// Max is the hard cap on stored entries before compaction.
	Max = 100
	// Decay is the per-second recency decay factor.
	Decay = 0.995
	// compactTo is the size entries are truncated to on overflow.
	compactTo = int(0.8 * float64(Max))
)

// Entry is a single memory record.
type Entry struct {
	Text       string
	Kind       Kind
	Importance int
	Timestamp  time.Time
}

// Stream is a bounded, time-ordered store of Entry values for one agent.
type Stream struct {
	entries []Entry
	now     func() time.Time
}

// New constructs an empty stream. now defaults to time.Now; tests may
// inject a deterministic clock.
func New(now func() time.Time) *Stream {
	if now == nil {
		now = time.Now
	}
	return &Stream{now: now}
}

// Add appends a memory entry, clamping importance to [1,10]. When the
// stream exceeds Max entries it is sorted by importance descending and
// truncated to 80% of Max.
func (s *Stream) Add(text string, importance int, kind Kind) {
	if s == nil {
		return
	}
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	s.entries = append(s.entries, Entry{
		Text:       text,
		Kind:       kind,
		Importance: importance,
		Timestamp:  s.now(),
	})
	if len(s.entries) > Max {
		sort.SliceStable(s.entries, func(i, j int) bool {
			return s.entries[i].Importance > s.entries[j].Importance
		})
		s.entries = s.entries[:compactTo]
	}
}

// Len reports the number of stored entries.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// GetRecent returns the last n entries in insertion order.
func (s *Stream) GetRecent(n int) []Entry {
	if s == nil || n <= 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// Retrieve scores every entry against query and returns the top-k.
//
// score = 0.3*recency + 0.4*(importance/10) + 0.3*relevance
//
//	recency   = Decay ^ ageSeconds
//	relevance = |queryWords found in memory| / |queryWords|
func (s *Stream) Retrieve(query string, k int) []Entry {
	if s == nil || k <= 0 || len(s.entries) == 0 {
		return nil
	}
	queryWords := tokenize(query)
	now := s.now()

	type scored struct {
		entry Entry
		score float64
	}
	scoredEntries := make([]scored, len(s.entries))
	for i, e := range s.entries {
		age := now.Sub(e.Timestamp).Seconds()
		if age < 0 {
			age = 0
		}
		recency := math.Pow(Decay, age)
		importance := float64(e.Importance) / 10.0
		relevance := relevanceScore(e.Text, queryWords)
		scoredEntries[i] = scored{
			entry: e,
			score: 0.3*recency + 0.4*importance + 0.3*relevance,
		}
	}
	sort.SliceStable(scoredEntries, func(i, j int) bool {
		return scoredEntries[i].score > scoredEntries[j].score
	})
	if k > len(scoredEntries) {
		k = len(scoredEntries)
	}
	out := make([]Entry, k)
	for i := 0; i < k; i++ {
		out[i] = scoredEntries[i].entry
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	return fields
}

func relevanceScore(text string, queryWords []string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			matches++
		}
	}
	return float64(matches) / float64(len(queryWords))
}
