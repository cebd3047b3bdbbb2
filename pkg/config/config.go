// Package config loads application settings from environment variables. A
// .env file in the working directory is read first when present so local
// development does not require exporting every variable by hand; values
// already set in the environment always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Analyzer names accepted by the ANALYZER variable.
const (
	AnalyzerSpotify   = "spotify"
	AnalyzerSimulated = "simulated"
	AnalyzerChain     = "chain"
)

const (
	defaultRedirectURL = "http://localhost:4000/callback"
	defaultDBPath      = "camelot.db"
	defaultAddr        = ":4000"
	defaultMaxRetries  = 3
	defaultBackoffMs   = 500
)

// Config holds every setting the web server needs.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	SigningKey   string
	DatabasePath string
	Addr         string
	LogLevel     string
	LogFormat    string
	Analyzer     string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Load reads .env (if any) and the environment. It returns an error naming
// every required variable that is missing or malformed.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read .env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv to look up values. Tests pass a map
// lookup instead of os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{
		ClientID:     getenv("SPOTIFY_CLIENT_ID"),
		ClientSecret: getenv("SPOTIFY_CLIENT_SECRET"),
		RedirectURL:  orDefault(getenv("SPOTIFY_REDIRECT_URL"), defaultRedirectURL),
		SigningKey:   getenv("SIGNING_KEY"),
		DatabasePath: orDefault(getenv("DATABASE_PATH"), defaultDBPath),
		Addr:         orDefault(getenv("ADDR"), defaultAddr),
		LogLevel:     orDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:    orDefault(getenv("LOG_FORMAT"), "text"),
		Analyzer:     strings.ToLower(orDefault(getenv("ANALYZER"), AnalyzerSpotify)),
		MaxRetries:   defaultMaxRetries,
		RetryBackoff: defaultBackoffMs * time.Millisecond,
	}

	var problems []string
	if c.ClientID == "" || c.ClientSecret == "" {
		problems = append(problems, "SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	if c.SigningKey == "" {
		problems = append(problems, "SIGNING_KEY must be set")
	}
	switch c.Analyzer {
	case AnalyzerSpotify, AnalyzerSimulated, AnalyzerChain:
	default:
		problems = append(problems, fmt.Sprintf("unknown ANALYZER %q", c.Analyzer))
	}
	if raw := getenv("SPOTIFY_MAX_RETRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			problems = append(problems, "SPOTIFY_MAX_RETRIES must be a positive integer")
		} else {
			c.MaxRetries = n
		}
	}
	if raw := getenv("SPOTIFY_RETRY_BACKOFF_MS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			problems = append(problems, "SPOTIFY_RETRY_BACKOFF_MS must be a positive integer")
		} else {
			c.RetryBackoff = time.Duration(n) * time.Millisecond
		}
	}
	if len(problems) > 0 {
		return c, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
