// Package app wires the ambient stack (logging, telemetry, config) to the
// domain packages (world, publish, ws, persistence) into one running
// server, mirroring the teacher's internal/app.Run entrypoint.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"battleroyale/server/internal/config"
	"battleroyale/server/internal/decision"
	"battleroyale/server/internal/decision/llm"
	"battleroyale/server/internal/net/ws"
	"battleroyale/server/internal/persistence/snapshotstore"
	"battleroyale/server/internal/protocol"
	"battleroyale/server/internal/publish"
	"battleroyale/server/internal/telemetry"
	"battleroyale/server/internal/thinking"
	"battleroyale/server/internal/world"
	"battleroyale/server/logging"
	"battleroyale/server/logging/sinks"
)

// Run builds the world, the publisher, the websocket transport, and the
// tick loop described by cfg, and serves HTTP until ctx is canceled.
func Run(ctx context.Context, cfg config.Config) error {
	fallbackLogger := log.Default()
	telemetryLogger := telemetry.WrapLogger(fallbackLogger)

	logCfg := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	combatLogFile, err := openCombatLog(cfg.CombatLogPath)
	if err != nil {
		telemetryLogger.Printf("app: combat log unavailable, continuing without it: %v", err)
	} else if combatLogFile != nil {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name:       "combat-log",
			Sink:       sinks.NewJSON(combatLogFile, logCfg.JSON.FlushInterval),
			Categories: []string{logging.CategoryCombat, logging.CategoryVote},
		})
	}

	router, err := logging.NewRouter(nil, logCfg, namedSinks)
	if err != nil {
		return fmt.Errorf("app: construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("app: failed to close logging router: %v", cerr)
		}
		if combatLogFile != nil {
			combatLogFile.Close()
		}
	}()

	metrics := telemetry.WrapMetrics(&logging.Metrics{})

	templates, err := config.LoadTemplates("")
	if err != nil {
		return fmt.Errorf("app: load agent templates: %w", err)
	}

	backend, err := buildDecisionBackend(cfg, metrics)
	if err != nil {
		return fmt.Errorf("app: build decision backend: %w", err)
	}

	thinkingStore := buildThinkingStore(cfg)

	store, err := buildSnapshotStore(cfg)
	if err != nil {
		telemetryLogger.Printf("app: snapshot store unavailable, persistence disabled: %v", err)
		store = snapshotstore.Null{}
	}
	defer store.Close()

	w, err := world.New(cfg.World, templates, backend, thinkingStore, time.Now, world.WithLogPublisher(router))
	if err != nil {
		return fmt.Errorf("app: construct world: %w", err)
	}

	pub := publish.New(publish.ModeDelta)

	validator, err := protocol.NewValidator("schemas")
	if err != nil {
		telemetryLogger.Printf("app: protocol schemas unavailable, validation disabled: %v", err)
		validator = nil
	}

	handler := ws.NewHandler(w, pub, ws.HandlerConfig{
		Logger:    fallbackLogger,
		Telemetry: telemetryLogger,
		Metrics:   metrics,
		Validator: validator,
	})

	tickCtx, cancelTick := context.WithCancel(ctx)
	defer cancelTick()
	go runTickLoop(tickCtx, w, pub, store, telemetryLogger, cfg.World.TickInterval)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	telemetryLogger.Printf("app: listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("app: server failed: %w", err)
	}
	return nil
}

// openCombatLog opens (creating/appending) the file backing the optional
// combat-log JSON sink. An empty path disables the sink entirely.
func openCombatLog(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func buildDecisionBackend(cfg config.Config, metrics telemetry.Metrics) (decision.Backend, error) {
	fallback := decision.NewRuleBased(nil)
	if cfg.Backend != "llm" {
		return fallback, nil
	}
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("BACKEND=llm requires LLM_API_KEY")
	}
	client := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	return llm.New(client, cfg.LLMMaxConcurrency, fallback, llm.WithMetrics(metrics), llm.WithTemperature(cfg.LLMTemperature)), nil
}

func buildThinkingStore(cfg config.Config) thinking.Store {
	if cfg.ThinkingStorage == "memory" {
		return thinking.NewMemory()
	}
	return thinking.Null{}
}

func buildSnapshotStore(cfg config.Config) (snapshotstore.Store, error) {
	if cfg.Persistence != "sqlite" {
		return snapshotstore.Null{}, nil
	}
	store, err := snapshotstore.Open("battleroyale-snapshots.db")
	if err != nil {
		return nil, err
	}
	return store, nil
}

// runTickLoop advances the world on a fixed interval, broadcasts the
// result to every subscriber, and opportunistically persists a snapshot.
// A persistence failure is logged and never blocks the next tick.
func runTickLoop(ctx context.Context, w *world.World, pub *publish.Publisher, store snapshotstore.Store, logger telemetry.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := w.Tick(ctx)
			pub.BroadcastTick(w, events)

			payload, err := w.Serialize()
			if err != nil {
				logger.Printf("app: serialize snapshot: %v", err)
				continue
			}
			if err := store.Save(ctx, w.SessionID(), payload); err != nil {
				logger.Printf("app: save snapshot: %v", err)
			}
		}
	}
}
