// Package secrets resolves named secrets for components and runners.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrSecretNotFound is wrapped by sources when a name has no value.
var ErrSecretNotFound = fmt.Errorf("secret not found")

// EnvSource resolves secrets from environment variables. Secret names are
// upper-snake-cased and prefixed, e.g. "slack-token" -> FLOWDECK_SECRET_SLACK_TOKEN.
type EnvSource struct {
	Prefix string
}

// NewEnvSource creates an environment-backed secret source with the default
// FLOWDECK_SECRET_ prefix.
func NewEnvSource() *EnvSource {
	return &EnvSource{Prefix: "FLOWDECK_SECRET_"}
}

// Secret resolves the named secret.
func (s *EnvSource) Secret(_ context.Context, name string) (string, error) {
	key := s.Prefix + envKey(name)

	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s (env %s)", ErrSecretNotFound, name, key)
	}

	return value, nil
}

func envKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, ".", "_")

	return key
}

// StaticSource is an in-memory secret source for tests.
type StaticSource struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStaticSource creates a static source seeded with the given values.
func NewStaticSource(values map[string]string) *StaticSource {
	if values == nil {
		values = make(map[string]string)
	}

	return &StaticSource{values: values}
}

// Set adds or replaces a secret.
func (s *StaticSource) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = value
}

// Secret resolves the named secret.
func (s *StaticSource) Secret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	return value, nil
}
