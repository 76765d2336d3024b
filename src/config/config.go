// Package config loads the service configuration from the environment.
// All settings share the BOOKING_ prefix, e.g. BOOKING_ADDR or
// BOOKING_MODEL_PROVIDER.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration for one service process.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for the HTTP server.
	Addr string
	// PublicBaseURL is the externally reachable base URL advertised in
	// agent cards and session responses.
	PublicBaseURL string

	// ModelProvider selects the language model backend: dummy, openai,
	// gemini, anthropic, or ollama.
	ModelProvider string
	// ModelID is the provider-specific model identifier.
	ModelID string
	// ModelAPIKey is the credential for providers that take the key as a
	// constructor argument rather than reading their own env var.
	ModelAPIKey string

	// DatabaseURL is the Postgres DSN for the session store. Empty keeps
	// sessions in memory.
	DatabaseURL string
	// MongoURL is the MongoDB URI for the audit log. Empty disables it.
	MongoURL string

	// DiscoveryURLs are the specialist discovery base URLs the router
	// fetches agent cards from.
	DiscoveryURLs []string
	// SessionAPIBase is the base URL of the specialist service the router
	// opens sessions against.
	SessionAPIBase string
}

// FromEnv loads a Profile from BOOKING_* environment variables.
func FromEnv() (*Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("booking")
	v.AutomaticEnv()

	v.SetDefault("mode", "demo")
	v.SetDefault("addr", ":8001")
	v.SetDefault("public_base_url", "http://localhost:8001")
	v.SetDefault("model_provider", "dummy")
	v.SetDefault("model_id", "")
	v.SetDefault("session_api_base", "")

	p := &Profile{
		Mode:           v.GetString("mode"),
		Addr:           v.GetString("addr"),
		PublicBaseURL:  strings.TrimRight(v.GetString("public_base_url"), "/"),
		ModelProvider:  strings.ToLower(v.GetString("model_provider")),
		ModelID:        v.GetString("model_id"),
		ModelAPIKey:    v.GetString("model_api_key"),
		DatabaseURL:    v.GetString("database_url"),
		MongoURL:       v.GetString("mongo_url"),
		DiscoveryURLs:  splitList(v.GetString("discovery_urls")),
		SessionAPIBase: strings.TrimRight(v.GetString("session_api_base"), "/"),
	}
	if p.SessionAPIBase == "" {
		p.SessionAPIBase = p.PublicBaseURL
	}
	return p, p.Validate()
}

// Validate normalizes the profile and rejects unusable settings.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	switch p.ModelProvider {
	case "dummy", "openai", "gemini", "anthropic", "ollama":
	default:
		return errors.Errorf("unknown model provider %q", p.ModelProvider)
	}
	if p.ModelProvider == "gemini" && p.ModelAPIKey == "" {
		return errors.New("gemini provider requires BOOKING_MODEL_API_KEY")
	}
	return nil
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
