package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// VaultConfig contains configuration for the HashiCorp Vault backend
type VaultConfig struct {
	// Vault server address (e.g. "https://vault.example.com:8200")
	Address string

	// AuthMethod is "token" or "approle"
	AuthMethod string

	// Token for token authentication
	Token string

	// AppRole credentials
	RoleID   string
	SecretID string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// MountPath of the KV v2 secrets engine (default "secret")
	MountPath string

	// CacheTTL bounds how long a resolved secret is reused (default 5m)
	CacheTTL time.Duration

	TLSSkipVerify bool
}

// vaultSecretManager implements ports.SecretManager on a KV v2 engine
type vaultSecretManager struct {
	client    *vault.Client
	mountPath string
	logger    ports.Logger
	ttl       time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewVaultSecretManager creates a new Vault backend
func NewVaultSecretManager(ctx context.Context, cfg VaultConfig, logger ports.Logger) (ports.SecretManager, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticate(client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "secret"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logger.Info("Vault backend initialized",
		ports.String("address", cfg.Address),
		ports.String("auth_method", cfg.AuthMethod),
		ports.String("mount_path", mountPath))

	return &vaultSecretManager{
		client:    client,
		mountPath: mountPath,
		logger:    logger,
		ttl:       ttl,
		cache:     make(map[string]cacheEntry),
	}, nil
}

func authenticate(client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads a KV v2 secret and returns the string stored under the
// "value" key
func (v *vaultSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	v.mu.Lock()
	entry, ok := v.cache[name]
	v.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	fullPath := fmt.Sprintf("%s/data/%s", v.mountPath, name)
	secret, err := v.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		v.logger.Error("retrieving secret from Vault failed",
			ports.String("name", name),
			ports.Err(err))
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected secret format for %s", name)
	}
	value, ok := data["value"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s has no value key", name)
	}

	v.mu.Lock()
	v.cache[name] = cacheEntry{value: value, expiresAt: time.Now().Add(v.ttl)}
	v.mu.Unlock()

	v.logger.Debug("secret resolved from Vault", ports.String("name", name))
	return value, nil
}
