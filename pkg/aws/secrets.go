package aws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/sync/singleflight"
)

// ErrBinarySecret is returned for secrets stored as SecretBinary. Only string secrets
// can stand in for environment variables.
var ErrBinarySecret = errors.New("secret has no string value")

// SecretGetter resolves a named secret to its string value.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient reads from Secrets Manager once per name. Values are kept until the
// process exits; rotating a secret needs a restart.
type SecretsClient struct {
	client secretsAPI
	cache  map[string]string

	mu      sync.Mutex
	lookups singleflight.Group
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return &SecretsClient{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  map[string]string{},
	}
}

func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := s.cached(name); ok {
		return value, nil
	}

	// concurrent callers for one name share a single request
	v, err, _ := s.lookups.Do(name, func() (any, error) {
		if value, ok := s.cached(name); ok {
			return value, nil
		}
		value, err := s.fetch(ctx, name)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.cache[name] = value
		s.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *SecretsClient) cached(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.cache[name]
	return value, ok
}

func (s *SecretsClient) fetch(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("read secret %q: %w", name, ErrBinarySecret)
	}
	return *out.SecretString, nil
}
