package config

import (
	"strings"
	"testing"
	"time"
)

func lookup(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(lookup(map[string]string{
		"SPOTIFY_CLIENT_ID":     "id",
		"SPOTIFY_CLIENT_SECRET": "secret",
		"SIGNING_KEY":           "key",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.RedirectURL != defaultRedirectURL || c.DatabasePath != defaultDBPath || c.Addr != ":4000" {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Analyzer != AnalyzerSpotify || c.MaxRetries != 3 || c.RetryBackoff != 500*time.Millisecond {
		t.Errorf("unexpected analyzer/retry defaults: %+v", c)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(lookup(map[string]string{
		"SPOTIFY_CLIENT_ID":        "id",
		"SPOTIFY_CLIENT_SECRET":    "secret",
		"SIGNING_KEY":              "key",
		"ANALYZER":                 "Chain",
		"SPOTIFY_MAX_RETRIES":      "5",
		"SPOTIFY_RETRY_BACKOFF_MS": "20",
		"ADDR":                     ":8080",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Analyzer != AnalyzerChain || c.MaxRetries != 5 || c.RetryBackoff != 20*time.Millisecond || c.Addr != ":8080" {
		t.Errorf("overrides not applied: %+v", c)
	}
}

func TestFromEnvMissing(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{"ANALYZER": "magic", "SPOTIFY_MAX_RETRIES": "-1"}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SPOTIFY_CLIENT_ID", "SIGNING_KEY", "ANALYZER", "SPOTIFY_MAX_RETRIES"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
