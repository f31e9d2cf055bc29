package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// AWSSecretsManagerConfig contains configuration for the AWS Secrets Manager
// backend
type AWSSecretsManagerConfig struct {
	// AWS region (e.g. "eu-central-1")
	Region string

	// Optional AWS profile name for local development
	Profile string

	// Optional custom endpoint for LocalStack testing
	Endpoint string

	// CacheTTL bounds how long a resolved secret is reused (default 5m)
	CacheTTL time.Duration
}

// awsSecretsManager implements ports.SecretManager on AWS Secrets Manager
type awsSecretsManager struct {
	client *secretsmanager.Client
	logger ports.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewAWSSecretsManager creates a new AWS Secrets Manager backend
func NewAWSSecretsManager(ctx context.Context, cfg AWSSecretsManagerConfig, logger ports.Logger) (ports.SecretManager, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logger.Info("AWS Secrets Manager backend initialized",
		ports.String("region", cfg.Region))

	return &awsSecretsManager{
		client: secretsmanager.NewFromConfig(awsCfg, clientOpts...),
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
	}, nil
}

func (a *awsSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	a.mu.Lock()
	entry, ok := a.cache[name]
	a.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	result, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		a.logger.Error("retrieving secret failed",
			ports.String("name", name),
			ports.Err(err))
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}

	value := aws.ToString(result.SecretString)
	a.mu.Lock()
	a.cache[name] = cacheEntry{value: value, expiresAt: time.Now().Add(a.ttl)}
	a.mu.Unlock()

	a.logger.Debug("secret resolved", ports.String("name", name))
	return value, nil
}
