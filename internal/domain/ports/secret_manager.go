package ports

import "context"

// SecretManager resolves operator-provided secrets at startup, primarily the
// Amazon Pay merchant secret key. Implementations exist for AWS Secrets
// Manager, HashiCorp Vault and plain environment variables; config selects
// one.
type SecretManager interface {
	// GetSecret returns the secret value stored under name. The name format
	// depends on the backend (AWS secret id, Vault path, env variable name).
	GetSecret(ctx context.Context, name string) (string, error)
}
