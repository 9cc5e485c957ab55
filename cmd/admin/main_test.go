package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janmitra/backend/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIssueToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "jan-mitra")

	out, err := run(t, "issue-token", "admin-1", "admin@janmitra.gov.in", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.Verifier{Secret: []byte("cli-secret"), Issuer: "jan-mitra"}.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Equal(t, "admin@janmitra.gov.in", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestSetRoleArguments(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "set-role", "user-1", "mayor")
	assert.ErrorContains(t, err, "unknown role")

	_, err = run(t, "set-role", "user-1", "officer")
	assert.ErrorContains(t, err, "department_id")

	_, err = run(t, "set-role", "user-1", "admin")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
