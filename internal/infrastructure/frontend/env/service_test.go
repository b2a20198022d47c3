package envfrontend_test

import (
	"context"
	"testing"

	envfrontend "github.com/bitonicnl/fireworks/internal/infrastructure/frontend/env"
	"github.com/stretchr/testify/require"
)

func TestEnvFrontend(t *testing.T) {
	_, err := envfrontend.NewService("")
	require.Error(t, err)

	svc, err := envfrontend.NewService("secret password")
	require.NoError(t, err)
	password, err := svc.GetPassword(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "secret password", password)
}
