// Package secretsource optionally overlays Vault-backed secrets onto a
// Config loaded from the environment, grounded on the teacher's two Vault
// integration points (internal/config/secrets.go's hashicorp/vault/api
// client and internal/vault/client.go's KV-v2 path construction) — this
// system only ever loads three secrets from Vault, so it uses the official
// client directly rather than reimplementing KV-v2 over raw HTTP.
package secretsource

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// insecureDevTokens mirrors the teacher's warn-on-known-dev-token set.
var insecureDevTokens = map[string]bool{
	"root": true, "dev": true, "test": true,
}

// Client wraps a hashicorp/vault/api client scoped to the single KV-v2
// mount this system reads secrets from.
type Client struct {
	api  *vaultapi.Client
	mount string
	path  string
	log   zerolog.Logger
}

// NewClient constructs a Vault client. Returns (nil, nil) when addr or
// token is empty — Vault integration is optional (SPEC_FULL.md §9).
func NewClient(addr, token string, log zerolog.Logger) (*Client, error) {
	if addr == "" || token == "" {
		return nil, nil
	}
	if insecureDevTokens[token] {
		log.Warn().Msg("vault token looks like a development placeholder; do not use in production")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr
	apiClient, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to construct vault client: %w", err)
	}
	apiClient.SetToken(token)

	return &Client{
		api:   apiClient,
		mount: "secret",
		path:  "aientity/internal",
		log:   log.With().Str("component", "vault").Logger(),
	}, nil
}

// getField fetches a single string field from the KV-v2 secret at
// <mount>/data/<path>.
func (c *Client) getField(ctx context.Context, field string) (string, error) {
	secret, err := c.api.KVv2(c.mount).Get(ctx, c.path)
	if err != nil {
		return "", fmt.Errorf("vault KV read failed: %w", err)
	}
	v, ok := secret.Data[field].(string)
	if !ok {
		return "", fmt.Errorf("field %q not present in vault secret %s/%s", field, c.mount, c.path)
	}
	return v, nil
}

// Overlay fetches internal_api_key/admin_token/model_gateway_key from
// Vault, substituting them into the fields passed by reference. A field is
// left at its existing (env-sourced) value if Vault doesn't have it —
// Vault overlay is additive, never a hard requirement.
func (c *Client) Overlay(ctx context.Context, internalAPIKey, adminToken, modelGatewayKey *string) {
	if c == nil {
		return
	}
	if v, err := c.getField(ctx, "internal_api_key"); err == nil {
		*internalAPIKey = v
	} else {
		c.log.Debug().Err(err).Msg("vault overlay: internal_api_key not loaded, keeping env value")
	}
	if v, err := c.getField(ctx, "admin_token"); err == nil {
		*adminToken = v
	} else {
		c.log.Debug().Err(err).Msg("vault overlay: admin_token not loaded, keeping env value")
	}
	if v, err := c.getField(ctx, "model_gateway_key"); err == nil {
		*modelGatewayKey = v
	} else {
		c.log.Debug().Err(err).Msg("vault overlay: model_gateway_key not loaded, keeping env value")
	}
}
