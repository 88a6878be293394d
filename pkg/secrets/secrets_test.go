package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource_ResolvesPrefixedVariable(t *testing.T) {
	t.Setenv("FLOWDECK_SECRET_SLACK_TOKEN", "xoxb-123")

	source := NewEnvSource()

	value, err := source.Secret(context.Background(), "slack-token")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-123", value)
}

func TestEnvSource_NormalizesNames(t *testing.T) {
	t.Setenv("FLOWDECK_SECRET_API_V2_KEY", "k-42")

	source := NewEnvSource()

	value, err := source.Secret(context.Background(), "api.v2-key")
	require.NoError(t, err)
	assert.Equal(t, "k-42", value)
}

func TestEnvSource_MissingSecret(t *testing.T) {
	source := NewEnvSource()

	_, err := source.Secret(context.Background(), "never-set-anywhere")

	require.ErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "FLOWDECK_SECRET_NEVER_SET_ANYWHERE")
}

func TestStaticSource(t *testing.T) {
	source := NewStaticSource(map[string]string{"token": "tok-1"})

	value, err := source.Secret(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", value)

	source.Set("token", "tok-2")

	value, err = source.Secret(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", value)

	_, err = source.Secret(context.Background(), "other")
	require.ErrorIs(t, err, ErrSecretNotFound)
}
