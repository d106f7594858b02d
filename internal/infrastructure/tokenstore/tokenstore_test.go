package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedStore string

func (f fixedStore) Token(context.Context) (string, error) { return string(f), nil }

func writeStorage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()

	path := writeStorage(t, `{"auth_token":" abc.def.ghi ","theme":"dark"}`)
	token, err := NewFileTokenStore(path, "auth_token").Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = NewFileTokenStore(path, "missing_key").Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = NewFileTokenStore(filepath.Join(t.TempDir(), "none.json"), "auth_token").Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "absent storage means no token")

	_, err = NewFileTokenStore(writeStorage(t, `not json`), "auth_token").Token(ctx)
	assert.Error(t, err)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestExpiryGuard(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	now := time.Now()

	valid := signed(t, now.Add(time.Hour))
	token, err := NewExpiryGuard(fixedStore(valid), logger).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, valid, token)

	expired := signed(t, now.Add(-time.Minute))
	token, err = NewExpiryGuard(fixedStore(expired), logger).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = NewExpiryGuard(fixedStore("opaque-token"), logger).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
}
