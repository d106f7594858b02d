package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fleetpulse/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FileTokenStore reads the token from a JSON object of string values, the
// persisted key-value layout shared with the authentication module.
type FileTokenStore struct {
	path string
	key  string
}

func NewFileTokenStore(path, key string) *FileTokenStore {
	return &FileTokenStore{path: path, key: key}
}

func (s *FileTokenStore) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token storage: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", fmt.Errorf("failed to parse token storage %s: %w", s.path, err)
	}
	return strings.TrimSpace(values[s.key]), nil
}

// RedisTokenStore reads the token from a plain string key.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

func NewRedisTokenStore(client *redis.Client, key string) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Token(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token from Redis: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// ExpiryGuard hides tokens that are JWTs past their exp claim, so an
// expired token is treated the same as a missing one. The signature is not
// verified here; that is the server's job. Opaque tokens pass through.
type ExpiryGuard struct {
	next   ports.TokenStore
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewExpiryGuard(next ports.TokenStore, logger *zap.SugaredLogger) *ExpiryGuard {
	return &ExpiryGuard{next: next, now: time.Now, logger: logger}
}

func (g *ExpiryGuard) Token(ctx context.Context) (string, error) {
	token, err := g.next.Token(ctx)
	if err != nil || token == "" {
		return token, err
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return token, nil
	}
	if claims.ExpiresAt != nil && !g.now().Before(claims.ExpiresAt.Time) {
		g.logger.Warnw("stored token is expired", "expired_at", claims.ExpiresAt.Time)
		return "", nil
	}
	return token, nil
}
