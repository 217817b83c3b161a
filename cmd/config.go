package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type appConfig struct {
	AgentURL            string
	APIKey              string
	APIKeyParam         string
	ContactSubjectField string
	Timeout             time.Duration
	PrefillTable        string
	ClientID            string
	DiscardStale        bool
	NetworkAsQuota      bool
	LogLevel            slog.Level
}

// loadConfig reads the process environment, after loading envFile (or .env)
// when it exists. A missing base URL is not an error: requests then use
// relative paths.
func loadConfig(envFile string) appConfig {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("could not load env file", "path", envFile, "err", err)
		}
	} else {
		_ = godotenv.Load()
	}

	return appConfig{
		AgentURL:            strings.TrimSpace(os.Getenv("AGENT_API_URL")),
		APIKey:              strings.TrimSpace(os.Getenv("AGENT_API_KEY")),
		APIKeyParam:         strings.TrimSpace(os.Getenv("AGENT_API_KEY_PARAM")),
		ContactSubjectField: envString("CONTACT_SUBJECT_FIELD", "subject"),
		Timeout:             time.Duration(envInt("AGENT_TIMEOUT_SECONDS", 0)) * time.Second,
		PrefillTable:        strings.TrimSpace(os.Getenv("PREFILL_TABLE")),
		ClientID:            envString("CLIENT_ID", defaultClientID()),
		DiscardStale:        envBool("DISCARD_STALE_RESPONSES", false),
		NetworkAsQuota:      envBool("NETWORK_ERRORS_AS_QUOTA", true),
		LogLevel:            envLevel("LOG_LEVEL", slog.LevelWarn),
	}
}

func (c appConfig) needsAWS() bool {
	return c.APIKeyParam != "" || c.PrefillTable != ""
}

func defaultClientID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envLevel(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
