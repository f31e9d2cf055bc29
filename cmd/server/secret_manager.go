package main

import (
	"context"
	"os"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/adapters/secrets"
	"github.com/kevin07696/amazonpay-service/internal/config"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// initSecretManager builds the secret backend selected by SECRETS_PROVIDER.
// Backend-specific settings stay in their conventional environment variables
// (AWS_*, VAULT_*) so the deployment matches what those SDKs document.
func initSecretManager(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.SecretManager, error) {
	switch cfg.Secrets.Provider {
	case "aws":
		return secrets.NewAWSSecretsManager(ctx, secrets.AWSSecretsManagerConfig{
			Region:   getEnv("AWS_REGION", "eu-central-1"),
			Profile:  os.Getenv("AWS_PROFILE"),
			Endpoint: os.Getenv("AWS_SECRETS_ENDPOINT"),
			CacheTTL: 5 * time.Minute,
		}, logger)

	case "vault":
		return secrets.NewVaultSecretManager(ctx, secrets.VaultConfig{
			Address:    os.Getenv("VAULT_ADDR"),
			AuthMethod: getEnv("VAULT_AUTH_METHOD", "token"),
			Token:      os.Getenv("VAULT_TOKEN"),
			RoleID:     os.Getenv("VAULT_ROLE_ID"),
			SecretID:   os.Getenv("VAULT_SECRET_ID"),
			Namespace:  os.Getenv("VAULT_NAMESPACE"),
			MountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			CacheTTL:   5 * time.Minute,
		}, logger)

	default:
		return secrets.NewEnvSecretManager(logger), nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
