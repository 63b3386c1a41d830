package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/pkg"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 6
	maxPasswordLen = 100
)

// AuthService owns account creation, credential checks and the opaque
// session tokens clients present on reconnect.
type AuthService struct {
	logger   *slog.Logger
	users    repository.UserRepository
	tokens   repository.TokenRepository
	tokenTTL time.Duration
}

func NewAuthService(logger *slog.Logger, users repository.UserRepository, tokens repository.TokenRepository, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		logger:   logger.With("component", "auth-service"),
		users:    users,
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

// Register creates a new account and returns the user with a fresh session
// token.
func (that *AuthService) Register(ctx context.Context, username, password string) (*entity.User, string, error) {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, "", apperror.ErrInvalidUsername
	}

	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, "", apperror.ErrInvalidPassword
	}

	_, err := that.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, "", apperror.ErrUsernameTaken
	}

	if !errors.Is(err, apperror.ErrUserNotFound) {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Rating:       entity.DefaultRating,
		Status:       entity.StatusOnline,
	}

	if err = that.users.CreateOrUpdate(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := that.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	that.logger.Info("registered new user", "userID", user.ID, "username", user.Username)

	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh session
// token. Unknown usernames and bad passwords are indistinguishable to the
// caller.
func (that *AuthService) Login(ctx context.Context, username, password string) (*entity.User, string, error) {
	user, err := that.users.GetByUsername(ctx, username)

	if errors.Is(err, apperror.ErrUserNotFound) {
		return nil, "", apperror.ErrWrongCredentials
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperror.ErrWrongCredentials
	}

	token, err := that.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// VerifyToken resolves a session token back to its user.
func (that *AuthService) VerifyToken(ctx context.Context, token string) (*entity.User, error) {
	userID, err := that.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := that.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token owner: %w", err)
	}

	return user, nil
}

// Logout invalidates a session token.
func (that *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	return that.tokens.Delete(ctx, token)
}

func (that *AuthService) issueToken(ctx context.Context, userID string) (string, error) {
	token, err := pkg.GenerateAuthToken()
	if err != nil {
		return "", err
	}

	if err = that.tokens.Store(ctx, token, userID, that.tokenTTL); err != nil {
		return "", fmt.Errorf("failed to persist token: %w", err)
	}

	return token, nil
}
