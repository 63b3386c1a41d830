package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

type TokenRepository interface {
	Store(ctx context.Context, token, userID string, ttl time.Duration) error
	Resolve(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type dbToken struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) TokenRepository {
	return &dbToken{
		client: client,
	}
}

// Store maps an opaque token to a user ID; redis evicts it after the TTL.
func (that *dbToken) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	tokenKey := "token:" + token

	if err := that.client.Set(ctx, tokenKey, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

func (that *dbToken) Resolve(ctx context.Context, token string) (string, error) {
	tokenKey := "token:" + token

	userID, err := that.client.Get(ctx, tokenKey).Result()

	if errors.Is(err, redis.Nil) {
		return "", apperror.ErrInvalidToken
	}

	if err != nil {
		return "", fmt.Errorf("failed to resolve token: %w", err)
	}

	return userID, nil
}

func (that *dbToken) Delete(ctx context.Context, token string) error {
	tokenKey := "token:" + token

	if err := that.client.Del(ctx, tokenKey).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}
