// internal/common/aws/aws_test.go
package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_UsesRegion(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadConfig(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestNewClients(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	sesClient, err := NewSESClient(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.NotNil(t, sesClient.client)

	snsClient, err := NewSNSClient(context.Background(), "us-east-1")
	require.NoError(t, err)
	assert.NotNil(t, snsClient.client)
}
