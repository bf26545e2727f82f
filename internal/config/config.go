// Package config loads server settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/duelarena/backend/internal/match"
)

type Config struct {
	Addr        string
	DatabaseDSN string // empty disables match history
	MaxPeers    int
	Rules       match.Rules
}

// Load reads .env if present, then the environment. Every key has a default
// so a bare `go run ./cmd/server` works.
func Load() Config {
	_ = godotenv.Load() // absence of .env is fine

	rules := match.DefaultRules()
	rules.RoundDuration = getDuration("ROUND_DURATION", rules.RoundDuration)
	rules.RoundsToWin = getInt("ROUNDS_TO_WIN", rules.RoundsToWin)
	rules.Countdown = getDuration("PREFIGHT_COUNTDOWN", rules.Countdown)
	rules.RestDelay = getDuration("POST_ROUND_DELAY", rules.RestDelay)
	rules.SpawnTimeout = getDuration("SPAWN_TIMEOUT", rules.SpawnTimeout)

	return Config{
		Addr:        getenv("LISTEN_ADDR", ":8080"),
		DatabaseDSN: getenv("DATABASE_DSN", ""),
		MaxPeers:    getInt("SESSION_MAX_PEERS", 2),
		Rules:       rules,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
