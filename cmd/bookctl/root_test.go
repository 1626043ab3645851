package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/api/middleware"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"extract"},
		{"task"},
		{"status"},
		{"deadletter", "list"},
		{"deadletter", "replay"},
		{"deadletter", "ack"},
		{"deadletter", "discard"},
		{"storage", "cleanup"},
		{"token"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "ops", "--role", "operator"})
	require.NoError(t, root.Execute())

	claims, err := middleware.ParseToken(middleware.AuthConfig{Secret: "cli-secret"}, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "operator", claims.Role)
}
