// Package config loads and validates process-wide configuration at startup.
// Required values missing at load time are a fatal error: the process must
// not come up half-configured.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/jun/workspacehub/internal/secret"
)

// Cookie names are fixed across deployments.
const (
	SessionCookieName = "HUB_SESSION"
	PKCECookieName    = "HUB_PKCE_VERIFIER"
)

// Config is the read-only process configuration.
type Config struct {
	AppURI string

	MSALClientID     string
	MSALTenantID     string
	MSALClientSecret string

	GeminiAPIKey    string
	OpenAIAPIKey    string // optional; enables the OpenAI completion adapter
	AnthropicAPIKey string // optional; enables the Anthropic completion adapter

	SessionSecret string

	AccountsTable string
	AppStateTable string

	DevMode    bool
	Production bool
}

func requiredEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable: %s", key)
	}
	return v, nil
}

func paramName(envKey, defaultParam string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultParam
}

// Load resolves the full configuration. Secrets go through the resolver
// (SSM in production, env vars in dev); everything else is plain env.
func Load(ctx context.Context, resolver secret.Resolver) (*Config, error) {
	cfg := &Config{
		DevMode:    os.Getenv("DEV_MODE") == "true",
		Production: os.Getenv("NODE_ENV") == "production" || os.Getenv("APP_ENV") == "production",
	}

	var err error
	if cfg.AppURI, err = requiredEnv("APP_URI"); err != nil {
		return nil, err
	}
	if cfg.MSALClientID, err = requiredEnv("MSAL_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.MSALTenantID, err = requiredEnv("MSAL_TENANT_ID"); err != nil {
		return nil, err
	}

	cfg.MSALClientSecret, err = resolver.GetSecret(ctx, paramName("MSAL_CLIENT_SECRET_PARAM", "/workspacehub/msal-client-secret"))
	if err != nil {
		return nil, fmt.Errorf("resolve MSAL client secret: %w", err)
	}
	cfg.SessionSecret, err = resolver.GetSecret(ctx, paramName("SESSION_SECRET_PARAM", "/workspacehub/session-secret"))
	if err != nil {
		return nil, fmt.Errorf("resolve session secret: %w", err)
	}
	cfg.GeminiAPIKey, err = resolver.GetSecret(ctx, paramName("GEMINI_API_KEY_PARAM", "/workspacehub/gemini-api-key"))
	if err != nil {
		return nil, fmt.Errorf("resolve Gemini API key: %w", err)
	}

	// Optional adapters; absence just disables the route to them.
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	cfg.AccountsTable = os.Getenv("ACCOUNTS_TABLE")
	if cfg.AccountsTable == "" {
		cfg.AccountsTable = "HubAccounts"
	}
	cfg.AppStateTable = os.Getenv("APP_STATE_TABLE")
	if cfg.AppStateTable == "" {
		cfg.AppStateTable = "HubAppState"
	}

	return cfg, nil
}

// IsMicrosoftConfigured reports whether the identity-provider settings are
// usable (set and not left at placeholder values).
func (c *Config) IsMicrosoftConfigured() bool {
	return c.MSALClientID != "" && c.MSALClientID != "YOUR_MSAL_CLIENT_ID" &&
		c.MSALTenantID != "" && c.MSALTenantID != "YOUR_MSAL_TENANT_ID" &&
		c.MSALClientSecret != "" && c.MSALClientSecret != "YOUR_MSAL_CLIENT_SECRET"
}
