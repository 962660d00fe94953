// Package config loads server configuration from environment variables,
// mirroring the teacher's internal/app.Run pattern: start from a
// documented default, override from os.Getenv, and log a warning rather
// than abort the process on a malformed value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"battleroyale/server/internal/telemetry"
	"battleroyale/server/internal/world"
)

// Config collects every tunable spec.md §6 and its ambient/domain
// additions name, ready to hand to world.New, the llm backend
// constructor, and the persistence/thinking plug-in selectors.
type Config struct {
	World world.Config

	Backend string // "rule" or "llm"

	LLMAPIKey         string
	LLMModel          string
	LLMBaseURL        string
	LLMMaxConcurrency int64
	LLMTemperature    float64

	ThinkingStorage string // "memory" or "none"
	Persistence     string // "sqlite" or "none"

	// CombatLogPath, when set, opens a newline-delimited JSON sink
	// restricted to combat and vote events alongside the console sink.
	CombatLogPath string

	Addr string
}

// Default returns the spec-documented defaults, with no LLM key and an
// in-memory thinking store and no persistence, matching zero-config
// startup.
func Default() Config {
	return Config{
		World:             world.DefaultConfig(),
		Backend:           "rule",
		LLMModel:          "deepseek-chat",
		LLMBaseURL:        "https://api.deepseek.com",
		LLMMaxConcurrency: 10,
		LLMTemperature:    0.7,
		ThinkingStorage:   "memory",
		Persistence:       "none",
		Addr:              ":8080",
	}
}

// FromEnv starts from Default and overrides from the environment,
// logging (not failing) on a malformed value, the same tolerance the
// teacher's app.Run extends to KEYFRAME_INTERVAL_TICKS and
// ENABLE_PPROF_TRACE.
func FromEnv(logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}
	cfg := Default()

	setInt(logger, "GRID_SIZE", &cfg.World.GridSize)
	setInt(logger, "AGENT_COUNT", &cfg.World.AgentCount)
	setDurationMillis(logger, "TICK_INTERVAL_MS", &cfg.World.TickInterval)
	setDurationMillis(logger, "VOTING_WINDOW_MS", &cfg.World.VotingWindow)
	setUint64(logger, "SHRINK_INTERVAL_TICKS", &cfg.World.ShrinkIntervalTicks)
	setFloat(logger, "OBSTACLE_DENSITY", &cfg.World.ObstacleDensity)
	setInt(logger, "VISION_RANGE", &cfg.World.VisionRange)
	setInt(logger, "MIN_BORDER", &cfg.World.MinBorder)

	setString(logger, "BACKEND", &cfg.Backend)
	setString(logger, "LLM_API_KEY", &cfg.LLMAPIKey)
	setString(logger, "LLM_MODEL", &cfg.LLMModel)
	setString(logger, "LLM_BASE_URL", &cfg.LLMBaseURL)
	setInt64(logger, "LLM_MAX_CONCURRENCY", &cfg.LLMMaxConcurrency)
	setFloat(logger, "LLM_TEMPERATURE", &cfg.LLMTemperature)

	setString(logger, "THINKING_STORAGE", &cfg.ThinkingStorage)
	setString(logger, "PERSISTENCE", &cfg.Persistence)
	setString(logger, "COMBAT_LOG_PATH", &cfg.CombatLogPath)
	setString(logger, "ADDR", &cfg.Addr)

	return cfg
}

func setString(logger telemetry.Logger, key string, dst *string) {
	if raw := os.Getenv(key); raw != "" {
		*dst = raw
	}
}

func setInt(logger telemetry.Logger, key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Printf("config: invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func setInt64(logger telemetry.Logger, key string, dst *int64) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Printf("config: invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func setUint64(logger telemetry.Logger, key string, dst *uint64) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		logger.Printf("config: invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func setFloat(logger telemetry.Logger, key string, dst *float64) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Printf("config: invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func setDurationMillis(logger telemetry.Logger, key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Printf("config: invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = time.Duration(value) * time.Millisecond
}

// Validate reports a configuration error that should abort startup,
// distinct from the warn-and-continue handling of a single malformed
// env var: an invariant violation the way the teacher's app.Run lets
// srv.ListenAndServe's error propagate.
func (c Config) Validate() error {
	if c.World.AgentCount <= 0 {
		return fmt.Errorf("config: AGENT_COUNT must be positive, got %d", c.World.AgentCount)
	}
	if c.World.GridSize <= 0 {
		return fmt.Errorf("config: GRID_SIZE must be positive, got %d", c.World.GridSize)
	}
	if c.Backend != "rule" && c.Backend != "llm" {
		return fmt.Errorf("config: BACKEND must be %q or %q, got %q", "rule", "llm", c.Backend)
	}
	if c.Backend == "llm" && c.LLMAPIKey == "" {
		return fmt.Errorf("config: BACKEND=llm requires LLM_API_KEY")
	}
	return nil
}
