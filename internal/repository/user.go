package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type UserRepository interface {
	CreateOrUpdate(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type dbUser struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) UserRepository {
	return &dbUser{
		client: client,
	}
}

// CreateOrUpdate stores the user record and keeps the username index pointed
// at it so logins can resolve a name to an ID.
func (that *dbUser) CreateOrUpdate(ctx context.Context, user *entity.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	userKey := "user:" + user.ID
	if err = that.client.Set(ctx, userKey, userJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set user: %w", err)
	}

	usernameKey := "username:" + user.Username
	if err = that.client.Set(ctx, usernameKey, user.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set username index: %w", err)
	}

	return nil
}

func (that *dbUser) GetByID(ctx context.Context, id string) (*entity.User, error) {
	userKey := "user:" + id

	response, err := that.client.Get(ctx, userKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	var user entity.User
	if err = json.Unmarshal([]byte(response), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

func (that *dbUser) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	usernameKey := "username:" + username

	id, err := that.client.Get(ctx, usernameKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve username: %w", err)
	}

	return that.GetByID(ctx, id)
}

func (that *dbUser) UpdateStatus(ctx context.Context, id, status string) error {
	user, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	user.Status = status

	return that.CreateOrUpdate(ctx, user)
}
