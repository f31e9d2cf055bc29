package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// envSecretManager implements ports.SecretManager on plain environment
// variables. Development and single-host deployments only; production uses
// AWS Secrets Manager or Vault.
type envSecretManager struct {
	logger ports.Logger
}

// NewEnvSecretManager creates a new environment-backed secret manager
func NewEnvSecretManager(logger ports.Logger) ports.SecretManager {
	return &envSecretManager{logger: logger}
}

func (m *envSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("secret not set: %s", name)
	}
	m.logger.Debug("secret resolved from environment", ports.String("name", name))
	return value, nil
}
