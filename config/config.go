package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultPort        = 3000
	defaultUpstreamURL = "https://api.sorare.com/graphql"
	defaultAuthHeader  = "APIKEY"
	defaultUserAgent   = "sorare-proxy/1.0"
	defaultTimeout     = 10 * time.Second
)

type Config struct {
	APIKey          string
	Port            int
	UpstreamURL     string
	AuthHeader      string
	UserAgent       string
	UpstreamTimeout time.Duration
	LogLevel        string

	// Optional Pub/Sub lookup worker; disabled unless both are set.
	LookupSubscription string
	LookupResultTopic  string
	GoogleProjectID    string
	CredentialsFile    string
}

func Load() *Config {
	cfg := &Config{
		APIKey:             strings.TrimSpace(os.Getenv("SORARE_API_KEY")),
		Port:               getEnvInt("PORT", defaultPort),
		UpstreamURL:        strings.TrimSpace(getEnv("SORARE_API_URL", defaultUpstreamURL)),
		AuthHeader:         strings.TrimSpace(getEnv("SORARE_AUTH_HEADER", defaultAuthHeader)),
		UserAgent:          strings.TrimSpace(getEnv("USER_AGENT", defaultUserAgent)),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", defaultTimeout),
		LogLevel:           strings.TrimSpace(getEnv("LOG_LEVEL", "info")),
		LookupSubscription: strings.TrimSpace(os.Getenv("LOOKUP_REQUEST_SUBSCRIPTION")),
		LookupResultTopic:  strings.TrimSpace(os.Getenv("LOOKUP_RESULT_TOPIC")),
		CredentialsFile:    strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}
	cfg.GoogleProjectID = getGoogleProjectID(cfg.CredentialsFile)

	if cfg.APIKey == "" {
		log.Warn().Msg("SORARE_API_KEY not set; upstream calls will likely be rejected")
	}
	if cfg.LookupSubscription != "" && cfg.LookupResultTopic == "" {
		log.Warn().Msg("LOOKUP_REQUEST_SUBSCRIPTION set without LOOKUP_RESULT_TOPIC; queue worker disabled")
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.Port))
}

// QueueEnabled reports whether the Pub/Sub lookup worker should run.
func (c *Config) QueueEnabled() bool {
	return c.LookupSubscription != "" && c.LookupResultTopic != ""
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"apiKeyProvided":      c.APIKey != "",
		"port":                c.Port,
		"upstreamURL":         c.UpstreamURL,
		"authHeader":          c.AuthHeader,
		"userAgent":           c.UserAgent,
		"upstreamTimeout":     c.UpstreamTimeout.String(),
		"logLevel":            c.LogLevel,
		"lookupSubscription":  c.LookupSubscription,
		"lookupResultTopic":   c.LookupResultTopic,
		"projectID":           c.GoogleProjectID,
		"credentialsProvided": c.CredentialsFile != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid int in environment; using default")
	}
	return def
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Str("value", v).Msg("invalid duration in environment; using default")
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func projectIDFromCredentials(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", fmt.Errorf("parsing credentials file: %w", err)
	}
	return strings.TrimSpace(x.ProjectID), nil
}

// getGoogleProjectID prefers an explicit env value, then the credentials file.
func getGoogleProjectID(credsFile string) string {
	if v := firstNonEmpty(os.Getenv("GOOGLE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCP_PROJECT")); v != "" {
		return v
	}
	if credsFile == "" {
		return ""
	}
	pid, err := projectIDFromCredentials(credsFile)
	if err != nil {
		log.Warn().Err(err).Str("credsFile", credsFile).Msg("project_id not readable from credentials file")
		return ""
	}
	return pid
}
