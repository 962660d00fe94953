package logging_test

import (
	"context"
	"testing"
	"time"

	"battleroyale/server/logging"
	"battleroyale/server/logging/sinks"
)

func TestRouterRoutesByCategory(t *testing.T) {
	combat := sinks.NewMemorySink()
	everything := sinks.NewMemorySink()

	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "combat", Sink: combat, Categories: []string{logging.CategoryCombat}},
		{Name: "everything", Sink: everything},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "kill", Category: logging.CategoryCombat, Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "vote.open", Category: logging.CategoryVote, Severity: logging.SeverityInfo})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(combat.Events()) >= 1 && len(everything.Events()) >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	combatEvents := combat.Events()
	if len(combatEvents) != 1 {
		t.Fatalf("combat sink got %d events, want 1", len(combatEvents))
	}
	if combatEvents[0].Category != logging.CategoryCombat {
		t.Errorf("combat sink got category %q, want %q", combatEvents[0].Category, logging.CategoryCombat)
	}

	if got := len(everything.Events()); got != 2 {
		t.Fatalf("everything sink got %d events, want 2", got)
	}
}

func TestRouterTracksDroppedAndDeliveredCounts(t *testing.T) {
	mem := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "mem", Sink: mem},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "vote.open", Category: logging.CategoryVote, Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{}) // empty Type is ignored

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if router.Stats().EventsTotal >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 {
		t.Errorf("EventsTotal = %d, want 1", stats.EventsTotal)
	}
	if got := len(mem.Events()); got != 1 {
		t.Fatalf("mem sink got %d events, want 1", got)
	}
}
