// Package vault resolves upstream API credentials (market data providers,
// reasoning backend) from HashiCorp Vault, with an in-memory fallback store
// for development when Vault is disabled.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config controls the Vault connection. Disabled clients work purely from
// the local cache so the rest of the app never branches on availability.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// Credential is one named upstream credential, e.g. a market data provider
// key or the reasoning backend key.
type Credential struct {
	Service string `json:"service"`
	APIKey  string `json:"api_key"`
}

// Client wraps the HashiCorp Vault client.
type Client struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]*Credential
}

// NewClient creates a Vault client. A disabled config yields a cache-only
// client, which is valid for development.
func NewClient(cfg Config) (*Client, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = "stock-advisor"
	}

	if !cfg.Enabled {
		return &Client{config: cfg, cache: make(map[string]*Credential)}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg, cache: make(map[string]*Credential)}, nil
}

// StoreCredential writes a credential for a service.
func (c *Client) StoreCredential(ctx context.Context, cred Credential) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[cred.Service] = &cred
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"service": cred.Service,
			"api_key": cred.APIKey,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(cred.Service), secretData); err != nil {
		return fmt.Errorf("failed to store credential in vault: %w", err)
	}

	c.mu.Lock()
	c.cache[cred.Service] = &cred
	c.mu.Unlock()
	return nil
}

// GetCredential resolves a service credential, preferring the cache.
func (c *Client) GetCredential(ctx context.Context, service string) (*Credential, error) {
	c.mu.RLock()
	if cached, ok := c.cache[service]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("credential %q not found and vault is disabled", service)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(service))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credential %q not found", service)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for %q", service)
	}

	cred := &Credential{
		Service: getString(data, "service"),
		APIKey:  getString(data, "api_key"),
	}
	if cred.Service == "" {
		cred.Service = service
	}

	c.mu.Lock()
	c.cache[service] = cred
	c.mu.Unlock()
	return cred, nil
}

// KeyOr resolves a service key, falling back to the supplied value (usually
// an environment variable) when Vault has nothing.
func (c *Client) KeyOr(ctx context.Context, service, fallback string) string {
	cred, err := c.GetCredential(ctx, service)
	if err != nil || cred.APIKey == "" {
		return fallback
	}
	return cred.APIKey
}

// DeleteCredential removes a service credential.
func (c *Client) DeleteCredential(ctx context.Context, service string) error {
	c.mu.Lock()
	delete(c.cache, service)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(service)); err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}
	return nil
}

// ClearCache drops all cached credentials.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Credential)
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(service string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, service)
}

func (c *Client) metadataPath(service string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, service)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
